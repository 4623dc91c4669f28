package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/lifecycle"
	"github.com/mamadbah2/vaccine-orders/internal/storefront"
)

// itemSpec is one --item value: product:option:qty[:date[:instructions]].
type itemSpec struct {
	Product      int64
	Option       int64
	Quantity     int
	Date         string
	Instructions string
}

func parseItem(raw string) (itemSpec, error) {
	parts := strings.SplitN(raw, ":", 5)
	if len(parts) < 3 {
		return itemSpec{}, fmt.Errorf("item %q: want product:pack:qty[:date[:instructions]]", raw)
	}
	var (
		spec itemSpec
		err  error
	)
	if spec.Product, err = parseID(parts[0]); err != nil {
		return itemSpec{}, fmt.Errorf("item %q: product: %w", raw, err)
	}
	if spec.Option, err = parseID(parts[1]); err != nil {
		return itemSpec{}, fmt.Errorf("item %q: pack: %w", raw, err)
	}
	if spec.Quantity, err = strconv.Atoi(parts[2]); err != nil || spec.Quantity <= 0 {
		return itemSpec{}, fmt.Errorf("item %q: quantity must be a positive number", raw)
	}
	if len(parts) > 3 {
		spec.Date = parts[3]
	}
	if len(parts) > 4 {
		spec.Instructions = parts[4]
	}
	return spec, nil
}

// addToCart adds spec through the product page so the minimum quantity and the
// delivery date floor apply.
func (c *cli) addToCart(ctx context.Context, spec itemSpec) error {
	pg, err := c.sf.OpenProduct(ctx, spec.Product)
	if err != nil {
		return c.fail(err, "Product not found")
	}
	if err := pg.Select(spec.Option); err != nil {
		return fmt.Errorf("product %d: %w", spec.Product, err)
	}
	pg.SetQuantity(spec.Quantity)
	if pg.Quantity != spec.Quantity {
		fmt.Fprintf(c.out, "%s: quantity raised to the minimum order of %d\n", pg.Product.Name, pg.Quantity)
	}
	if spec.Date != "" {
		d, err := time.ParseInLocation(models.DateLayout, spec.Date, time.Local)
		if err != nil {
			return fmt.Errorf("product %d: delivery date must be YYYY-MM-DD", spec.Product)
		}
		if err := pg.SetDeliveryDate(d); err != nil {
			return fmt.Errorf("product %d: %w (earliest %s)", spec.Product, err, pg.EarliestDelivery().Format(models.DateLayout))
		}
	}
	pg.Instructions = spec.Instructions
	msg, err := pg.AddToCart(c.sf.Cart)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, msg)
	return nil
}

func (c *cli) orderCmd() *cobra.Command {
	var (
		items []string
		notes string
	)
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Compose a cart and place it as one order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := c.sf.Guard.RequireUser(ctx); err != nil {
				return c.fail(err, "Could not resolve session")
			}
			if len(items) == 0 {
				return fmt.Errorf("at least one --item is required")
			}
			for _, raw := range items {
				spec, err := parseItem(raw)
				if err != nil {
					return err
				}
				if err := c.addToCart(ctx, spec); err != nil {
					return err
				}
			}
			fmt.Fprintf(c.out, "Cart: %d lines, %d items\n", c.sf.Cart.Len(), c.sf.Cart.TotalItems())

			o, err := c.sf.Checkout(ctx, notes)
			if err != nil {
				return c.fail(err, "Failed to place order")
			}
			fmt.Fprintf(c.out, "Order %s placed (%s)\n", o.OrderNumber, o.Status)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, "product:pack:qty[:date[:instructions]], repeatable")
	cmd.Flags().StringVar(&notes, "notes", "", "order notes")
	return cmd
}

func (c *cli) ordersCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders with their status counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := c.sf.Guard.RequireUser(ctx); err != nil {
				return c.fail(err, "Could not resolve session")
			}
			all, counters, err := c.sf.Desk.List(ctx, "")
			if err != nil {
				return c.fail(err, "Failed to load orders")
			}
			shown := storefront.Track(all, "", status)

			fmt.Fprintf(c.out, "Total %d  Open %d  Pending %d  Upcoming %d  Delivered %d  Cancelled %d\n",
				counters.Total, counters.Open, counters.Pending, counters.Upcoming, counters.Delivered, counters.Cancelled)
			if len(shown) == 0 {
				fmt.Fprintln(c.out, "No orders")
				return nil
			}
			tw := newTable(c.out)
			fmt.Fprintln(tw, "ID\tNUMBER\tSTATUS\tCUSTOMER\tITEMS\tCREATED\tNEXT")
			for _, o := range shown {
				next := "-"
				if s, ok := storefront.Proposal(o); ok {
					next = string(s)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
					o.ID, o.OrderNumber, o.Status, o.UserUsername, len(o.Items), o.CreatedAt.Format("Jan 02, 2006"), next)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter, or pending")
	return cmd
}

func (c *cli) advanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <order-id>",
		Short: "Move an order to its next status (staff)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.transition(cmd.Context(), args[0], false)
		},
	}
}

func (c *cli) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an order (staff)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.transition(cmd.Context(), args[0], true)
		},
	}
}

func (c *cli) transition(ctx context.Context, arg string, cancel bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	if _, err := c.sf.Guard.RequireStaff(ctx); err != nil {
		return c.fail(err, "Could not resolve session")
	}
	o, _, err := c.sf.Desk.Detail(ctx, id)
	if err != nil {
		return c.fail(err, "Order not found")
	}

	from := o.Status
	var updated models.Order
	if cancel {
		updated, err = c.sf.Desk.Cancel(ctx, *o)
	} else {
		updated, err = c.sf.Desk.Advance(ctx, *o)
	}
	if err != nil {
		return &failure{msg: storefront.StatusFailure(err), cause: err}
	}

	fmt.Fprintf(c.out, "Order %s: %s -> %s\n", updated.OrderNumber, from, updated.Status)
	c.printTimeline(lifecycle.BuildTimeline(updated))
	return nil
}

func (c *cli) printTimeline(tl lifecycle.Timeline) {
	if tl.Cancelled {
		fmt.Fprintln(c.out, "  [x] Cancelled")
	}
	for _, s := range tl.Steps {
		mark := "[ ]"
		if s.State == lifecycle.StepCompleted {
			mark = "[*]"
		}
		if s.Current {
			mark = "[>]"
		}
		line := fmt.Sprintf("  %s %s", mark, s.Label)
		if s.By != "" && s.State == lifecycle.StepCompleted {
			line += " by " + s.By
		}
		fmt.Fprintln(c.out, line)
	}
}
