package domain

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Observation is one usage row in canonical form: the window it covers
// and the numeric fields fee calculation may draw from.
type Observation struct {
	OrderlineID snowflake.ID
	Start       int64
	End         int64
	Values      map[string]float64
}

// Value returns a named metric of the observation.
func (o Observation) Value(field string) (float64, error) {
	v, ok := o.Values[field]
	if !ok {
		return 0, fmt.Errorf("usage observation has no field %q", field)
	}
	return v, nil
}

// Adapter is the per-kind capability set the ingest runner drives.
// Implementations normalize raw feed records, persist configuration and
// usage rows, and convert stored metrics into fee multipliers.
type Adapter interface {
	// Kind is the registry name of the adapter.
	Kind() string

	// FetchUsage downloads the raw usage records for a window.
	FetchUsage(ctx context.Context, start, end int64) ([]map[string]any, error)

	// SaveConfig persists the kind-specific configuration row for an
	// orderline. It may enrich record in place for later save steps.
	SaveConfig(ctx context.Context, orderlineID snowflake.ID, record map[string]any) error

	// SaveUsage persists one usage row, applying the kind's field renames
	// and save-time unit conversions. Re-saving an identical window is a
	// no-op. The returned observation reflects what was stored.
	SaveUsage(ctx context.Context, orderlineID snowflake.ID, start, end int64, record map[string]any) (Observation, error)

	// Usage loads previously ingested observations within a window for
	// fee recomputation.
	Usage(ctx context.Context, start, end int64) ([]Observation, error)

	// FeeValue converts a stored metric into the multiplier used by fee
	// calculation, applying the kind's charge-time rules.
	FeeValue(obs Observation, field string) (float64, error)
}
