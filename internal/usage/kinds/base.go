// Package kinds implements the per-kind usage adapters and the registry
// that resolves them by name.
package kinds

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/eresearchbill/reckon/internal/feed"
	"github.com/eresearchbill/reckon/internal/ingestconf"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type base struct {
	kind  string
	cfg   *ingestconf.Config
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	feed  *feed.Client
}

func (b *base) Kind() string { return b.kind }

func (b *base) FetchUsage(ctx context.Context, start, end int64) ([]map[string]any, error) {
	query := map[string]string{
		"start": strconv.FormatInt(start, 10),
		"end":   strconv.FormatInt(end, 10),
	}
	return b.feed.FetchJSON(ctx, b.cfg.URL(), query, b.cfg.Headers())
}

// canonical renames the configured source fields of a record to their
// table names. Missing fields fail the record, not the batch.
func (b *base) canonical(record map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(b.cfg.Fields()))
	for source, target := range b.cfg.Fields() {
		v, ok := record[source]
		if !ok {
			return nil, fmt.Errorf("usage record missing field %q", source)
		}
		out[target] = v
	}
	return out, nil
}

// observationValues collects every numeric canonical field plus the
// numeric configuration fields named by the extra map, so fee fields
// that live on the configuration side are available right after saving.
func (b *base) observationValues(canonical, record map[string]any) map[string]float64 {
	values := make(map[string]float64)
	for key, v := range canonical {
		if f, ok := asFloat(v); ok {
			values[key] = f
		}
	}
	for source, target := range b.cfg.ExtraMap() {
		if f, ok := asFloat(record[source]); ok {
			values[target] = f
		}
	}
	return values
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func numField(m map[string]any, key string) (float64, error) {
	f, ok := asFloat(m[key])
	if !ok {
		return 0, fmt.Errorf("field %q is missing or not numeric", key)
	}
	return f, nil
}

func strField(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	return fmt.Sprint(v), nil
}
