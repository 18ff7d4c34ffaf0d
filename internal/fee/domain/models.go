// Package domain defines fee rows and the billing-item structures fee
// calculation works from.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/eresearchbill/reckon/internal/catalog/domain"
	"github.com/shopspring/decimal"
)

// SecondsPerYear prorates yearly list prices over billing windows,
// using 365-day years.
const SecondsPerYear = 31536000

// Fee is the amount owed for one orderline over one window. The window
// key makes recomputation idempotent.
type Fee struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	OrderlineID snowflake.ID    `gorm:"not null;uniqueIndex:ux_fees_key,priority:1"`
	Start       int64           `gorm:"not null;uniqueIndex:ux_fees_key,priority:2"`
	End         int64           `gorm:"not null;uniqueIndex:ux_fees_key,priority:3"`
	Amount      decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Fee) TableName() string { return "fees" }

// BillingItem is one product contributing to a fee. Field names the
// metered usage field; it is empty for flat fees, which are charged by
// time proration alone.
type BillingItem struct {
	ProductNo string
	ProductID snowflake.ID
	Type      catalogdomain.ProductType
	Field     string
}

// Flat reports whether the item has no usage multiplier.
func (i BillingItem) Flat() bool { return i.Type == catalogdomain.TypeFlatFees }

// Query scopes a fee listing. Email decides visibility: administrators
// see everything, account managers their billed accounts, anyone else
// only orders they manage.
type Query struct {
	Email     string
	Start     int64
	End       int64
	ProductNo string
}

// Record is one fee row with its order context attached.
type Record struct {
	OrderlineID snowflake.ID    `json:"orderline_id"`
	OrderNo     string          `json:"order_no"`
	Identifier  string          `json:"identifier"`
	Start       int64           `json:"start"`
	End         int64           `json:"end"`
	Amount      decimal.Decimal `json:"amount"`
}

// Sum is the aggregated amount per orderline over a window.
type Sum struct {
	OrderlineID snowflake.ID    `json:"orderline_id"`
	OrderNo     string          `json:"order_no"`
	Identifier  string          `json:"identifier"`
	Amount      decimal.Decimal `json:"amount"`
}
