package storefront

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
	"github.com/mamadbah2/vaccine-orders/internal/stock"
)

// All disables a select filter.
const All = "all"

// Filter narrows the catalog. Empty and "all" select everything.
type Filter struct {
	Search  string
	Species string
	Brand   string
	Type    string
}

// Active reports whether any filter is set.
func (f Filter) Active() bool {
	return strings.TrimSpace(f.Search) != "" || isSet(f.Species) || isSet(f.Brand) || isSet(f.Type)
}

// Match reports whether p passes every filter. Search looks at name, description and brand.
func (f Filter) Match(p models.Product) bool {
	q := strings.TrimSpace(f.Search)
	if q != "" && !repository.ContainsFold(p.Name, q) && !repository.ContainsFold(p.Description, q) && !repository.ContainsFold(p.Brand, q) {
		return false
	}
	if isSet(f.Species) && string(p.Species) != f.Species {
		return false
	}
	if isSet(f.Brand) && p.Brand != f.Brand {
		return false
	}
	if isSet(f.Type) && string(p.Type) != f.Type {
		return false
	}
	return true
}

func isSet(v string) bool {
	return v != "" && v != All
}

// Card is a product as the catalog grid shows it.
type Card struct {
	Product      models.Product
	Stock        int
	Level        stock.Level
	LeadTimeDays int
	Doses        string
}

// NewCard derives the card figures from the nested packs and batches.
func NewCard(p models.Product) Card {
	displayed := stock.DisplayedFor(p)
	return Card{
		Product:      p,
		Stock:        displayed,
		Level:        stock.LevelOf(displayed),
		LeadTimeDays: stock.LeadTimeDays(p),
		Doses:        DoseSummary(p, displayed),
	}
}

// DoseSummary lists the pack sizes, or the stock figure when the product has no packs.
func DoseSummary(p models.Product, displayed int) string {
	if len(p.DosePacks) == 0 {
		return fmt.Sprintf("%d in stock", displayed)
	}
	parts := make([]string, 0, len(p.DosePacks))
	for _, d := range p.DosePacks {
		parts = append(parts, fmt.Sprintf("%d doses", d.Doses))
	}
	return strings.Join(parts, ", ")
}

// Listing is one filtered view of the catalog.
type Listing struct {
	Cards  []Card
	Total  int
	Brands []string
}

// Summary is the results line above the grid.
func (l Listing) Summary() string {
	return fmt.Sprintf("Showing %d of %d products", len(l.Cards), l.Total)
}

// CatalogAPI lists products.
type CatalogAPI interface {
	Products(ctx context.Context) ([]models.Product, error)
}

// Catalog is the product browsing page.
type Catalog struct {
	api    CatalogAPI
	logger *zap.Logger
}

func NewCatalog(api CatalogAPI, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{api: api, logger: logger}
}

// List fetches the catalog and applies f.
func (c *Catalog) List(ctx context.Context, f Filter) (Listing, error) {
	products, err := c.api.Products(ctx)
	if err != nil {
		c.logger.Warn("fetch products failed", zap.Error(err))
		return Listing{}, fmt.Errorf("list products: %w", err)
	}

	out := Listing{Total: len(products), Brands: Brands(products)}
	for _, p := range products {
		if f.Match(p) {
			out.Cards = append(out.Cards, NewCard(p))
		}
	}
	return out, nil
}

// Brands returns the distinct brands, sorted, for the brand filter.
func Brands(products []models.Product) []string {
	seen := make(map[string]struct{}, len(products))
	var out []string
	for _, p := range products {
		if p.Brand == "" {
			continue
		}
		if _, ok := seen[p.Brand]; ok {
			continue
		}
		seen[p.Brand] = struct{}{}
		out = append(out, p.Brand)
	}
	sort.Strings(out)
	return out
}
