package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/storefront"
)

// failure carries the message shown to the user and keeps the cause for errors.Is.
type failure struct {
	msg   string
	cause error
}

func (f *failure) Error() string { return f.msg }
func (f *failure) Unwrap() error { return f.cause }

func (c *cli) fail(err error, fallback string) error {
	c.logger.Debug("command failed", zap.Error(err))
	return &failure{msg: storefront.Message(err, fallback+": "+err.Error()), cause: err}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
