package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/storefront"
)

func (c *cli) catalogCmd() *cobra.Command {
	var f storefront.Filter
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the vaccine catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := c.sf.Catalog.List(cmd.Context(), f)
			if err != nil {
				return c.fail(err, "Failed to fetch products")
			}
			if len(l.Cards) == 0 {
				fmt.Fprintln(c.out, "No products found")
				return nil
			}
			tw := newTable(c.out)
			fmt.Fprintln(tw, "ID\tNAME\tBRAND\tSPECIES\tTYPE\tSTOCK\tLEAD TIME\tDOSES")
			for _, card := range l.Cards {
				p := card.Product
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d (%s)\t%d days\t%s\n",
					p.ID, p.Name, p.Brand, p.Species, p.Type, card.Stock, card.Level, card.LeadTimeDays, card.Doses)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(c.out, l.Summary())
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Search, "search", "", "search name, description and brand")
	cmd.Flags().StringVar(&f.Species, "species", storefront.All, "poultry, swine or all")
	cmd.Flags().StringVar(&f.Type, "type", storefront.All, "live, killed, attenuated or all")
	cmd.Flags().StringVar(&f.Brand, "brand", storefront.All, "brand or all")
	return cmd
}

func (c *cli) productCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "product <id>",
		Short: "Show a product and its orderable options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			pg, err := c.sf.OpenProduct(cmd.Context(), id)
			if err != nil {
				return c.fail(err, "Product not found")
			}
			p := pg.Product
			fmt.Fprintf(c.out, "%s (%s)\n", p.Name, p.Brand)
			fmt.Fprintf(c.out, "%s, %s\n", p.Species, p.Type)
			if p.Description != "" {
				fmt.Fprintln(c.out, p.Description)
			}
			if p.ActiveIngredients != "" {
				fmt.Fprintf(c.out, "Active ingredients: %s\n", p.ActiveIngredients)
			}
			if p.ColdChainRequired {
				fmt.Fprintf(c.out, "Cold chain: store at %s and keep cold during transport\n", p.StorageTempRange)
			}
			if p.AdministrationNotes != "" {
				fmt.Fprintf(c.out, "Administration: %s\n", p.AdministrationNotes)
			}
			fmt.Fprintf(c.out, "Available: %d\n", pg.Stock())
			fmt.Fprintf(c.out, "Minimum order: %d\n", pg.Quantity)
			fmt.Fprintf(c.out, "Lead time: %d days (earliest delivery %s)\n", pg.LeadTimeDays(), pg.EarliestDelivery().Format(models.DateLayout))

			if len(pg.Options) == 0 {
				fmt.Fprintln(c.out, "No dose packs or batches available")
				return nil
			}
			tw := newTable(c.out)
			fmt.Fprintln(tw, "OPTION\tDESCRIPTION\tUNITS")
			for _, o := range pg.Options {
				fmt.Fprintf(tw, "%d\t%s\t%d\n", o.ID(), o.Label(), o.DosePack.UnitsPerPack)
			}
			return tw.Flush()
		},
	}
}
