package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username, password := c.v.GetString("username"), c.v.GetString("password")
			if username == "" || password == "" {
				return errors.New("username and password are required (flags or VAXCTL_USERNAME / VAXCTL_PASSWORD)")
			}
			u, err := c.sf.Login(cmd.Context(), username, password)
			if err != nil {
				return c.fail(err, "Login failed")
			}
			role := "shopper"
			if u.IsStaff {
				role = "staff"
			}
			fmt.Fprintf(c.out, "Signed in as %s (%s)\n", u.Username, role)
			return nil
		},
	}
	cmd.Flags().StringP("username", "u", "", "username")
	cmd.Flags().StringP("password", "p", "", "password")
	_ = c.v.BindPFlag("username", cmd.Flags().Lookup("username"))
	_ = c.v.BindPFlag("password", cmd.Flags().Lookup("password"))
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.sf.Logout(cmd.Context()); err != nil {
				return c.fail(err, "Logout failed")
			}
			fmt.Fprintln(c.out, "Signed out.")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := c.sf.Guard.RequireUser(cmd.Context())
			if err != nil {
				return c.fail(err, "Could not resolve session")
			}
			fmt.Fprintf(c.out, "%s <%s>\n", u.Username, u.Email)
			if u.CompanyName != "" {
				fmt.Fprintf(c.out, "Company: %s\n", u.CompanyName)
			}
			fmt.Fprintf(c.out, "Staff: %t\n", u.IsStaff)
			return nil
		},
	}
}
