// Package domain contains the customer-facing contract models: accounts,
// contacts, orders and orderlines, plus the helpers that link raw CRM
// records to them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Account is an organisation or one of its units. Units carry ParentID.
type Account struct {
	ID        snowflake.ID  `gorm:"primaryKey"`
	CRMID     string        `gorm:"column:crm_id;type:text;not null;uniqueIndex:ux_accounts_crm"`
	Name      string        `gorm:"type:text;not null"`
	ParentID  *snowflake.ID `gorm:"index"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Account) TableName() string { return "accounts" }

// Contact is a person attached to an account, typically the manager of
// one or more orders.
type Contact struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CRMID     string       `gorm:"column:crm_id;type:text;not null;uniqueIndex:ux_contacts_crm"`
	Name      string       `gorm:"type:text;not null"`
	Email     string       `gorm:"type:text;not null;index"`
	AccountID snowflake.ID `gorm:"not null;index"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Contact) TableName() string { return "contacts" }

// Manager marks a contact as the manager of a top level account. Such
// contacts see every fee billed to that account.
type Manager struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	AccountID snowflake.ID `gorm:"not null;uniqueIndex:ux_managers_key,priority:1"`
	ContactID snowflake.ID `gorm:"not null;uniqueIndex:ux_managers_key,priority:2"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Manager) TableName() string { return "managers" }

// Order is a sales order from the CRM. The same CRM order can appear on
// different price lists over time, so the business key includes the list.
type Order struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CRMID     string       `gorm:"column:crm_id;type:text;not null;uniqueIndex:ux_orders_key,priority:3"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_orders_key,priority:1"`
	No        string       `gorm:"type:text;not null;uniqueIndex:ux_orders_key,priority:2"`
	BillerID  snowflake.ID `gorm:"not null;index"`
	ManagerID snowflake.ID `gorm:"not null;index"`
	PriceList string       `gorm:"type:text;not null;uniqueIndex:ux_orders_key,priority:4"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`

	Biller  *Account `gorm:"foreignKey:BillerID"`
	Manager *Contact `gorm:"foreignKey:ManagerID"`
}

func (Order) TableName() string { return "orders" }

// Orderline ties an order to a product instance. Identifier is the
// service-instance key built from usage data, possibly composed from
// several fields.
type Orderline struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	OrderID    snowflake.ID    `gorm:"not null;uniqueIndex:ux_orderlines_key,priority:1"`
	ProductID  snowflake.ID    `gorm:"not null;uniqueIndex:ux_orderlines_key,priority:2"`
	Identifier string          `gorm:"type:text;not null;uniqueIndex:ux_orderlines_key,priority:3"`
	Quantity   decimal.Decimal `gorm:"type:numeric;not null"`
	Price      decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`

	Order *Order `gorm:"foreignKey:OrderID"`
}

func (Orderline) TableName() string { return "orderlines" }
