// Package domain contains persistence models for the product catalog and
// its price history.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ProductType decides how a product participates in fee calculation.
type ProductType string

const (
	// TypeService is metered: cost is calculated by usage and time.
	TypeService ProductType = "Service"
	// TypeSalesInventory behaves like Service.
	TypeSalesInventory ProductType = "Sales Inventory"
	// TypeFlatFees is charged by time-proration alone, no usage multiplier.
	TypeFlatFees ProductType = "Flat Fees"
	// TypeMiscellaneous marks a pseudo product that must never appear in
	// a fee calculation's billing items.
	TypeMiscellaneous ProductType = "Miscellaneous Charges"
)

// Billable reports whether the type may contribute a billing item.
func (t ProductType) Billable() bool { return t != TypeMiscellaneous }

// Product is a purchasable item. No is the stable business key.
type Product struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	CRMID     string        `json:"crm_id" gorm:"column:crm_id;type:text;not null"`
	No        string        `json:"no" gorm:"type:text;not null;uniqueIndex:ux_products_no"`
	Name      string        `json:"name" gorm:"type:text;not null"`
	Type      ProductType   `json:"type" gorm:"type:text;not null"`
	Structure string        `json:"structure" gorm:"type:text"` // Product, Bundle or Family
	ParentID  *snowflake.ID `json:"parent_id,omitempty" gorm:"index"`     // set on composed/bundle parts
	CreatedAt time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }

// Price is one effective-dated amount of a product on a named price list.
// Prices are immutable once created; new prices supersede, never
// overwrite.
type Price struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey"`
	ProductID snowflake.ID    `json:"product_id" gorm:"not null;uniqueIndex:ux_prices_key,priority:1"`
	ListName  string          `json:"list_name" gorm:"type:text;not null;uniqueIndex:ux_prices_key,priority:2"`
	Date      int64           `json:"date" gorm:"not null;uniqueIndex:ux_prices_key,priority:3"` // effective-from timestamp
	CRMID     string          `json:"crm_id" gorm:"column:crm_id;type:text"`
	Unit      string          `json:"unit" gorm:"type:text"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric;not null"`
	CreatedAt time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Price) TableName() string { return "prices" }
