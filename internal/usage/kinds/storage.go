package kinds

import (
	"context"
	"fmt"
	"math"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/eresearchbill/reckon/internal/usage/domain"
	"github.com/eresearchbill/reckon/pkg/db/option"
	"github.com/eresearchbill/reckon/pkg/repository"
)

// blockGB is the charge granularity: space is billed in 250 GB blocks.
const blockGB = 250

// storageBackend binds a storage kind to its backend label and the
// save-time unit conversion of its raw usage field.
type storageBackend struct {
	configType  string
	sourceField string
	divisor     float64
}

var (
	backendXFS    = storageBackend{configType: "XFS", sourceField: "usage", divisor: 1048576}
	backendHNASVV = storageBackend{configType: "HNAS Virtual Volume", sourceField: "usage", divisor: 1000}
	backendHNASFS = storageBackend{configType: "HNAS File System", sourceField: "live_usage", divisor: 1000}
	backendHCP    = storageBackend{configType: "HCP", sourceField: "ingested_bytes", divisor: 1073741824}
)

// storageKind covers the four physical storage backends. They share
// tables and fee rules and differ only in labels and unit conversion.
type storageKind struct {
	base
	backend    storageBackend
	configRepo repository.Repository[usagedomain.StorageConfig]
	usageRepo  repository.Repository[usagedomain.StorageUsage]
}

func newStorageKind(backend storageBackend) func(base) (usagedomain.Adapter, error) {
	return func(b base) (usagedomain.Adapter, error) {
		return &storageKind{
			base:       b,
			backend:    backend,
			configRepo: repository.ProvideStore[usagedomain.StorageConfig](b.db),
			usageRepo:  repository.ProvideStore[usagedomain.StorageUsage](b.db),
		}, nil
	}
}

func (a *storageKind) SaveConfig(ctx context.Context, orderlineID snowflake.ID, record map[string]any) error {
	_, _, err := a.configRepo.GetOrCreate(ctx,
		&usagedomain.StorageConfig{OrderlineID: orderlineID, Type: a.backend.configType},
		&usagedomain.StorageConfig{
			ID:          a.genID.Generate(),
			OrderlineID: orderlineID,
			Type:        a.backend.configType,
		},
	)
	return err
}

func (a *storageKind) SaveUsage(ctx context.Context, orderlineID snowflake.ID, start, end int64, record map[string]any) (usagedomain.Observation, error) {
	// Convert the raw unit to GB in place so the stored row and every
	// later consumer of this record see the converted value.
	raw, err := numField(record, a.backend.sourceField)
	if err != nil {
		return usagedomain.Observation{}, fmt.Errorf("storage usage: %w", err)
	}
	record[a.backend.sourceField] = raw / a.backend.divisor

	canonical, err := a.canonical(record)
	if err != nil {
		return usagedomain.Observation{}, err
	}
	used, err := numField(canonical, "usage")
	if err != nil {
		return usagedomain.Observation{}, err
	}

	_, _, err = a.usageRepo.GetOrCreate(ctx,
		&usagedomain.StorageUsage{OrderlineID: orderlineID, Start: start, End: end},
		&usagedomain.StorageUsage{
			ID:          a.genID.Generate(),
			OrderlineID: orderlineID,
			Start:       start,
			End:         end,
			Usage:       used,
		},
	)
	if err != nil {
		return usagedomain.Observation{}, err
	}
	return usagedomain.Observation{
		OrderlineID: orderlineID,
		Start:       start,
		End:         end,
		Values:      a.observationValues(canonical, record),
	}, nil
}

func (a *storageKind) Usage(ctx context.Context, start, end int64) ([]usagedomain.Observation, error) {
	rows, err := a.usageRepo.Find(ctx, &usagedomain.StorageUsage{},
		option.WithCondition("start >= ? AND \"end\" <= ?", start, end),
	)
	if err != nil {
		return nil, err
	}

	out := make([]usagedomain.Observation, 0, len(rows))
	for _, row := range rows {
		out = append(out, usagedomain.Observation{
			OrderlineID: row.OrderlineID,
			Start:       row.Start,
			End:         row.End,
			Values:      map[string]float64{"usage": row.Usage},
		})
	}
	return out, nil
}

// FeeValue rounds the stored GB figure up to whole blocks; prices are
// quoted per GB but charged per block.
func (a *storageKind) FeeValue(obs usagedomain.Observation, field string) (float64, error) {
	v, err := obs.Value(field)
	if err != nil {
		return 0, err
	}
	return math.Ceil(v/blockGB) * blockGB, nil
}
