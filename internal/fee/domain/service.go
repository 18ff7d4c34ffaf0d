package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/eresearchbill/reckon/internal/catalog/domain"
	"github.com/eresearchbill/reckon/internal/ingestconf"
	usagedomain "github.com/eresearchbill/reckon/internal/usage/domain"
	"github.com/shopspring/decimal"
)

// ErrUnauthorized rejects fee queries from callers with no matching
// contact record.
var ErrUnauthorized = errors.New("fee: caller not authorized")

// Calculator computes fee amounts for one ingestion run. Billing items
// and price histories are resolved once at construction.
type Calculator interface {
	// Items exposes the resolved billing items.
	Items() []BillingItem

	// Fee computes the total amount for one observation against a price
	// list. A missing price is a hard error for the record.
	Fee(ctx context.Context, adapter usagedomain.Adapter, obs usagedomain.Observation, priceList string) (decimal.Decimal, error)
}

type Service interface {
	// NewCalculator resolves billing items for a product and its
	// substitution table. subs may be nil when no substitution data was
	// supplied. Items must never carry the pseudo product type.
	NewCalculator(ctx context.Context, product *catalogdomain.Product, cfg *ingestconf.Config, subs *catalogdomain.SubstituteSet) (Calculator, error)

	// SaveFee persists a fee idempotently on (orderline, start, end).
	SaveFee(ctx context.Context, orderlineID snowflake.ID, start, end int64, amount decimal.Decimal) error

	// List returns fee rows visible to the caller in a window.
	List(ctx context.Context, q Query) ([]Record, error)

	// Summarize returns per-orderline fee totals visible to the caller.
	Summarize(ctx context.Context, q Query) ([]Sum, error)

	// ListUsage returns raw usage rows of one resource kind visible to
	// the caller, joined with their order number and identifier.
	ListUsage(ctx context.Context, q Query, kind string) ([]map[string]any, error)
}
