package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// ErrProductNotFound is returned when a lookup by product number finds
// no catalog row.
var ErrProductNotFound = errors.New("catalog: product not found")

// LoadSummary reports what a price list load changed.
type LoadSummary struct {
	Records         int
	ProductsCreated int
	PricesCreated   int
}

type Service interface {
	// GetByNo resolves a product by its business number.
	GetByNo(ctx context.Context, no string) (*Product, error)

	// LoadPriceList upserts products and effective-dated prices from raw
	// price list records. validFrom is the effective timestamp applied to
	// every created price.
	LoadPriceList(ctx context.Context, records []map[string]any, validFrom int64) (LoadSummary, error)

	// FinderFor loads the full price history of a product into a
	// PriceFinder.
	FinderFor(ctx context.Context, productID snowflake.ID) (*PriceFinder, error)

	// ListPrices returns price rows, newest first, optionally restricted
	// to one product number.
	ListPrices(ctx context.Context, productNo string) ([]*Price, error)
}
