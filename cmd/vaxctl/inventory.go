package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/vaccine-orders/internal/storefront"
)

func (c *cli) inventoryCmd() *cobra.Command {
	var (
		search string
		sortBy string
	)
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Show stock and batch expiry per product (staff)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := c.sf.Guard.RequireStaff(ctx); err != nil {
				return c.fail(err, "Could not resolve session")
			}
			inv, err := c.sf.Admin.Inventory(ctx, search, storefront.InventorySort(sortBy))
			if err != nil {
				return c.fail(err, "Failed to load inventory")
			}
			if inv.OutOfStock > 0 {
				fmt.Fprintf(c.out, "%d products out of stock.\n", inv.OutOfStock)
			}

			tw := newTable(c.out)
			fmt.Fprintln(tw, "PRODUCT\tSTOCK\tSTATUS\tBATCH\tEXPIRY\tDAYS\tAVAILABLE\tRESERVED")
			for _, row := range inv.Rows {
				if len(row.Batches) == 0 {
					fmt.Fprintf(tw, "%s\t%d\t%s\t-\t-\t-\t-\t-\n", row.Product.Name, row.Stock, row.Badge)
					continue
				}
				for i, b := range row.Batches {
					name, stockCol, badge := "", "", ""
					if i == 0 {
						name, stockCol, badge = row.Product.Name, fmt.Sprint(row.Stock), row.Badge
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s (%s)\t%d\t%d\t%d\n",
						name, stockCol, badge, b.Batch.BatchNumber, b.Batch.ExpiryDate, b.Badge, b.DaysLeft,
						b.Batch.Available(), b.Batch.QuantityReserved)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter by name, brand or species")
	cmd.Flags().StringVar(&sortBy, "sort", string(storefront.SortByName), "name or stock")
	return cmd
}
