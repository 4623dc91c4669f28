package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/session"
	"github.com/mamadbah2/vaccine-orders/internal/storefront"
	"github.com/mamadbah2/vaccine-orders/pkg/clients/vaxapi"
	"github.com/mamadbah2/vaccine-orders/pkg/logger"
)

// settings is the resolved configuration: flags, then VAXCTL_* env, then ~/.vaxctl.yaml.
type settings struct {
	API      string        `mapstructure:"api"`
	Session  string        `mapstructure:"session"`
	LogLevel string        `mapstructure:"log_level"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type cli struct {
	v      *viper.Viper
	out    io.Writer
	logger *zap.Logger
	sf     *storefront.Storefront
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:               "vaxctl",
		Short:             "Vaccine orders storefront",
		SilenceUsage:      true,
		PersistentPreRunE: c.init,
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.vaxctl.yaml)")
	flags.String("api", "http://localhost:8080", "backend base URL")
	flags.String("session", "", "session file (default $HOME/.vaxctl/session.json)")
	flags.String("log-level", "warn", "log level")
	flags.String("timeout", "15s", "request timeout")
	_ = c.v.BindPFlag("api", flags.Lookup("api"))
	_ = c.v.BindPFlag("session", flags.Lookup("session"))
	_ = c.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = c.v.BindPFlag("timeout", flags.Lookup("timeout"))

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.catalogCmd(),
		c.productCmd(),
		c.orderCmd(),
		c.ordersCmd(),
		c.advanceCmd(),
		c.cancelCmd(),
		c.inventoryCmd(),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command, _ []string) error {
	c.out = cmd.OutOrStdout()

	home, _ := os.UserHomeDir()
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		c.v.SetConfigFile(file)
	} else {
		c.v.SetConfigName(".vaxctl")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath(home)
	}
	c.v.SetEnvPrefix("VAXCTL")
	c.v.AutomaticEnv()
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var s settings
	if err := c.v.Unmarshal(&s); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if s.Session == "" {
		s.Session = filepath.Join(home, ".vaxctl", "session.json")
	}

	log, err := logger.New(s.LogLevel)
	if err != nil {
		return err
	}
	c.logger = log

	sess, err := session.NewManager(session.NewFileStore(s.Session), logger.Named(log, "session"))
	if err != nil {
		return err
	}

	var opts []vaxapi.Option
	if s.Timeout > 0 {
		opts = append(opts, vaxapi.WithTimeout(s.Timeout))
	}
	c.sf = storefront.New(s.API, sess, logger.Named(log, "storefront"), opts...)
	return nil
}
