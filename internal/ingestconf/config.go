// Package ingestconf parses and validates the declarative ingestion
// configuration describing one resource kind's source feed, field mapping
// and fee-calculation strategy.
package ingestconf

import (
	"errors"
	"fmt"

	"github.com/eresearchbill/reckon/internal/identifier"
)

// ErrConfiguration is the base class of malformed-configuration errors.
// It is fatal: a run aborts before any record is processed.
var ErrConfiguration = errors.New("configuration error")

// Usage is the raw USAGE block of one kind entry.
type Usage struct {
	OriginalData Source            `json:"original-data"`
	Fields       map[string]string `json:"fields"`
	Orderline    OrderlineBlock    `json:"orderline"`

	// FeeField and Composition are mutually exclusive; exactly one must
	// be present.
	FeeField    *string           `json:"fee-field"`
	Composition map[string]string `json:"composition"`

	// FlavorJSONPath points at the flavor side table required by the
	// cloud VM kind.
	FlavorJSONPath string `json:"flavor-json-path"`
}

// Source describes the usage feed endpoint.
type Source struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// OrderlineBlock maps usage fields onto orderline identity and the
// kind-specific configuration row.
type OrderlineBlock struct {
	CRMLinker   string            `json:"crm-linker"`
	Aggregators []string          `json:"aggregators"`
	Extra       map[string]string `json:"extra"`
}

// Config is a validated ingestion configuration for one resource kind.
type Config struct {
	ProductNo string

	raw Usage
}

// New validates raw eagerly and fails fast with a ErrConfiguration-classed
// error on any missing or conflicting key.
func New(productNo string, raw Usage) (*Config, error) {
	if raw.OriginalData.URL == "" {
		return nil, fmt.Errorf("%w: missing url for original-data", ErrConfiguration)
	}
	if raw.Orderline.CRMLinker == "" {
		return nil, fmt.Errorf("%w: missing crm-linker for orderline", ErrConfiguration)
	}
	if raw.FeeField != nil && raw.Composition != nil {
		return nil, fmt.Errorf("%w: fee-field and composition cannot be set at the same time", ErrConfiguration)
	}
	if raw.FeeField == nil && raw.Composition == nil {
		return nil, fmt.Errorf("%w: either fee-field or composition must be defined", ErrConfiguration)
	}
	return &Config{ProductNo: productNo, raw: raw}, nil
}

// URL returns the usage feed endpoint.
func (c *Config) URL() string { return c.raw.OriginalData.URL }

// Headers returns optional request headers for the usage feed.
func (c *Config) Headers() map[string]string { return c.raw.OriginalData.Headers }

// Fields is the rename table from source field names to canonical usage
// table fields.
func (c *Config) Fields() map[string]string { return c.raw.Fields }

// LinkerField is the usage field matched against the CRM contract
// identifier. It locates the contract only; the stored orderline
// identifier is the composed string.
func (c *Config) LinkerField() string { return c.raw.Orderline.CRMLinker }

// Aggregators returns extra usage fields that disambiguate usage mapping
// many-to-one against a single contract record.
func (c *Config) Aggregators() []string { return c.raw.Orderline.Aggregators }

// IdentifierFields is the ordered field list the composed orderline
// identifier is built from.
func (c *Config) IdentifierFields() []string {
	return identifier.SortComposed(c.raw.Orderline.CRMLinker, c.raw.Orderline.Aggregators)
}

// ComposeIdentifier builds the orderline identifier string from a usage
// record.
func (c *Config) ComposeIdentifier(record map[string]any) (string, error) {
	return identifier.BuildComposed(c.IdentifierFields(), record)
}

// ExtraMap maps usage fields onto the kind-specific configuration row
// (e.g. a VM's core/ram/os columns).
func (c *Config) ExtraMap() map[string]string { return c.raw.Orderline.Extra }

// IsComposed reports whether fee calculation spans multiple products.
func (c *Config) IsComposed() bool { return c.raw.Composition != nil }

// FeeField returns the single metered field name. Calling it on a
// composed configuration is a programming error.
func (c *Config) FeeField() (string, error) {
	if c.raw.FeeField == nil {
		return "", fmt.Errorf("%w: fee-field is not defined", ErrConfiguration)
	}
	return *c.raw.FeeField, nil
}

// Composition maps composing product numbers to the usage fields they
// meter.
func (c *Config) Composition() map[string]string { return c.raw.Composition }

// FlavorPath returns the flavor side-table path for kinds that need one.
func (c *Config) FlavorPath() string { return c.raw.FlavorJSONPath }
