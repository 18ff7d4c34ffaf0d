package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrLinkage marks a record that cannot be tied to accounts, contacts or
// an order. It is recoverable: callers skip the record and continue.
var ErrLinkage = errors.New("contract: cannot link record")

// priceListKey is the OData annotation carrying the human readable name
// of the order's price level.
const priceListKey = "pricelevelID@OData.Community.Display.V1.FormattedValue"

// ManagerInfo is the manager slice of a joined contract record.
type ManagerInfo struct {
	Name      string
	Email     string
	ContactID string
	Unit      string
}

// OrderInfo identifies an order within a contract record.
type OrderInfo struct {
	CRMID     string
	Name      string
	No        string
	PriceList string
}

// OrderlineInfo carries the purchased quantity and agreed unit price of
// one contract line.
type OrderlineInfo struct {
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Identifier string
}

// Extractor pulls typed values out of a raw contract record, a flat map
// of CRM contract fields optionally merged with a usage record.
type Extractor struct {
	content map[string]any
}

func NewExtractor(content map[string]any) *Extractor {
	return &Extractor{content: content}
}

func (e *Extractor) str(key string) (string, error) {
	v, ok := e.content[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrLinkage, key)
	}
	return fmt.Sprint(v), nil
}

func (e *Extractor) number(key string) (decimal.Decimal, error) {
	v, ok := e.content[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: missing %s", ErrLinkage, key)
	}
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %s is not numeric", ErrLinkage, key)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: %s is not numeric", ErrLinkage, key)
	}
}

// Manager extracts the order manager's contact details.
func (e *Extractor) Manager() (ManagerInfo, error) {
	var info ManagerInfo
	var err error
	if info.Name, err = e.str("manager"); err != nil {
		return info, err
	}
	if info.Email, err = e.str("manageremail"); err != nil {
		return info, err
	}
	if info.ContactID, err = e.str("managercontactid"); err != nil {
		return info, err
	}
	if info.Unit, err = e.str("managerunit"); err != nil {
		return info, err
	}
	return info, nil
}

// Biller returns the name of the account that pays for the order.
func (e *Extractor) Biller() (string, error) {
	return e.str("biller")
}

// Order extracts the order business keys.
func (e *Extractor) Order() (OrderInfo, error) {
	var info OrderInfo
	var err error
	if info.CRMID, err = e.str("salesorderid"); err != nil {
		return info, err
	}
	if info.Name, err = e.str("name"); err != nil {
		return info, err
	}
	if info.No, err = e.str("orderID"); err != nil {
		return info, err
	}
	if info.PriceList, err = e.str(priceListKey); err != nil {
		return info, err
	}
	return info, nil
}

// Orderline extracts quantity, unit price and the raw identifier held
// under idKey. The key depends on the product being ingested.
func (e *Extractor) Orderline(idKey string) (OrderlineInfo, error) {
	var info OrderlineInfo
	var err error
	if info.Price, err = e.number("unitPrice"); err != nil {
		return info, err
	}
	if info.Quantity, err = e.number("allocated"); err != nil {
		return info, err
	}
	if info.Identifier, err = e.str(idKey); err != nil {
		return info, err
	}
	return info, nil
}
