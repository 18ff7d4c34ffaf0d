package kinds

import (
	"context"
	"math"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/eresearchbill/reckon/internal/usage/domain"
	"github.com/eresearchbill/reckon/pkg/db/option"
	"github.com/eresearchbill/reckon/pkg/repository"
)

// hpc handles batch job statistics. There is no configuration row; the
// partition is part of the usage key itself.
type hpc struct {
	base
	usageRepo repository.Repository[usagedomain.HPCUsage]
}

func newHPC(b base) (usagedomain.Adapter, error) {
	return &hpc{
		base:      b,
		usageRepo: repository.ProvideStore[usagedomain.HPCUsage](b.db),
	}, nil
}

func (a *hpc) SaveConfig(ctx context.Context, orderlineID snowflake.ID, record map[string]any) error {
	return nil
}

func (a *hpc) SaveUsage(ctx context.Context, orderlineID snowflake.ID, start, end int64, record map[string]any) (usagedomain.Observation, error) {
	canonical, err := a.canonical(record)
	if err != nil {
		return usagedomain.Observation{}, err
	}
	partition, err := strField(canonical, "partition")
	if err != nil {
		return usagedomain.Observation{}, err
	}
	cpuSeconds, err := numField(canonical, "cpu_seconds")
	if err != nil {
		return usagedomain.Observation{}, err
	}
	count, err := numField(canonical, "count")
	if err != nil {
		return usagedomain.Observation{}, err
	}

	_, _, err = a.usageRepo.GetOrCreate(ctx,
		&usagedomain.HPCUsage{OrderlineID: orderlineID, Start: start, End: end, Partition: partition},
		&usagedomain.HPCUsage{
			ID:          a.genID.Generate(),
			OrderlineID: orderlineID,
			Start:       start,
			End:         end,
			Partition:   partition,
			CPUSeconds:  int64(cpuSeconds),
			Count:       int64(count),
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

func (a *hpc) Usage(ctx context.Context, start, end int64) ([]usagedomain.Observation, error) {
	rows, err := a.usageRepo.Find(ctx, &usagedomain.HPCUsage{},
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
			Values: map[string]float64{
				"cpu_seconds": float64(row.CPUSeconds),
				"count":       float64(row.Count),
			},
		})
	}
	return out, nil
}

// FeeValue charges CPU time in hours: partial seconds round up before
// the division.
func (a *hpc) FeeValue(obs usagedomain.Observation, field string) (float64, error) {
	v, err := obs.Value(field)
	if err != nil {
		return 0, err
	}
	if field == "cpu_seconds" {
		return math.Ceil(v) / 3600, nil
	}
	return v, nil
}
