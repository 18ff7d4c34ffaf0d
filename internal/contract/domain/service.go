package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Linkage is the pair of records a contract must resolve to before any
// order can be written: who pays and who manages.
type Linkage struct {
	Biller  *Account
	Manager *Contact
}

type Service interface {
	// Link resolves and persists the accounts and manager contact of a
	// contract record. Failures wrap ErrLinkage and are recoverable.
	Link(ctx context.Context, dir *AccountDirectory, roster *ContactRoster, record map[string]any) (*Linkage, error)

	// EnsureOrder gets or creates the order a contract record describes.
	EnsureOrder(ctx context.Context, record map[string]any, linkage *Linkage) (*Order, error)

	// EnsureOrderline gets or creates the orderline of an order for a
	// product. idKey names the contract field holding the raw service
	// identifier; identifier, when non-empty, replaces it with a
	// composed instance key built from usage data.
	EnsureOrderline(ctx context.Context, order *Order, productID snowflake.ID, record map[string]any, idKey, identifier string) (*Orderline, error)

	// FindOrderline locates an orderline by its instance identifier and
	// product, with its order attached. Returns an ErrLinkage-wrapped
	// error when no orderline matches.
	FindOrderline(ctx context.Context, identifier string, productID snowflake.ID) (*Orderline, error)

	// GetOrderline fetches an orderline by primary key with its order
	// attached.
	GetOrderline(ctx context.Context, id snowflake.ID) (*Orderline, error)

	// OrderlinesByProduct lists every orderline of a product with orders
	// attached.
	OrderlinesByProduct(ctx context.Context, productID snowflake.ID) ([]*Orderline, error)
}
