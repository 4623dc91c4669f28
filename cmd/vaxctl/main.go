// Command vaxctl is the terminal storefront: browse the catalog, compose and place orders,
// and run the staff order desk and inventory views against a vaccine-orders backend.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetContext(ctx)
	if err := root.Execute(); err != nil {
		stop()
		os.Exit(1)
	}
}
