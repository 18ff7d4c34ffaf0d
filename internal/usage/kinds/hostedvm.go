package kinds

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/eresearchbill/reckon/internal/usage/domain"
	"github.com/eresearchbill/reckon/pkg/db"
	"github.com/eresearchbill/reckon/pkg/db/option"
	"github.com/eresearchbill/reckon/pkg/repository"
	"go.uber.org/zap"
)

// hostedVM handles VMs on managed hypervisors. A VM keeps its server id
// for life but its OS, memory or core count can legitimately change, so
// a duplicate configuration row is diffed and updated rather than
// rejected.
type hostedVM struct {
	base
	configRepo repository.Repository[usagedomain.HostedVMConfig]
	usageRepo  repository.Repository[usagedomain.HostedVMUsage]
}

func newHostedVM(b base) (usagedomain.Adapter, error) {
	return &hostedVM{
		base:       b,
		configRepo: repository.ProvideStore[usagedomain.HostedVMConfig](b.db),
		usageRepo:  repository.ProvideStore[usagedomain.HostedVMUsage](b.db),
	}, nil
}

func (a *hostedVM) SaveConfig(ctx context.Context, orderlineID snowflake.ID, record map[string]any) error {
	mapped := make(map[string]any, len(a.cfg.ExtraMap()))
	for source, target := range a.cfg.ExtraMap() {
		v, ok := record[source]
		if !ok {
			return fmt.Errorf("missing field %q for %s configuration", source, a.kind)
		}
		mapped[target] = v
	}

	serverID, err := strField(mapped, "server_id")
	if err != nil {
		return err
	}
	server, err := strField(mapped, "server")
	if err != nil {
		return err
	}
	core, err := numField(mapped, "core")
	if err != nil {
		return err
	}
	ram, err := numField(mapped, "ram")
	if err != nil {
		return err
	}
	os, _ := strField(mapped, "os")
	businessUnit, _ := strField(mapped, "business_unit")

	fresh := &usagedomain.HostedVMConfig{
		ID:           a.genID.Generate(),
		OrderlineID:  orderlineID,
		ServerID:     serverID,
		Server:       server,
		Core:         int(core),
		RAM:          int(ram),
		OS:           os,
		BusinessUnit: businessUnit,
		Date:         time.Now().Unix(),
	}

	err = a.configRepo.Create(ctx, fresh)
	if err == nil {
		return nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return err
	}
	return a.updateExisting(ctx, serverID, fresh)
}

// updateExisting diffs the stored row against the incoming one and
// persists only when something actually changed.
func (a *hostedVM) updateExisting(ctx context.Context, serverID string, fresh *usagedomain.HostedVMConfig) error {
	existing, err := a.configRepo.FindOne(ctx, &usagedomain.HostedVMConfig{ServerID: serverID})
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("hostedvm configuration for server %s vanished during update", serverID)
	}

	changed := false
	if existing.Server != fresh.Server {
		existing.Server, changed = fresh.Server, true
	}
	if existing.Core != fresh.Core {
		existing.Core, changed = fresh.Core, true
	}
	if existing.RAM != fresh.RAM {
		existing.RAM, changed = fresh.RAM, true
	}
	if existing.OS != fresh.OS {
		existing.OS, changed = fresh.OS, true
	}
	if existing.BusinessUnit != fresh.BusinessUnit {
		existing.BusinessUnit, changed = fresh.BusinessUnit, true
	}
	if existing.OrderlineID != fresh.OrderlineID {
		existing.OrderlineID, changed = fresh.OrderlineID, true
	}
	if !changed {
		return nil
	}

	existing.Date = fresh.Date
	a.log.Info("hostedvm configuration changed", zap.String("server_id", serverID))
	return a.configRepo.Save(ctx, existing)
}

func (a *hostedVM) SaveUsage(ctx context.Context, orderlineID snowflake.ID, start, end int64, record map[string]any) (usagedomain.Observation, error) {
	canonical, err := a.canonical(record)
	if err != nil {
		return usagedomain.Observation{}, err
	}
	storage, err := numField(canonical, "storage")
	if err != nil {
		return usagedomain.Observation{}, err
	}
	span, err := numField(canonical, "span")
	if err != nil {
		return usagedomain.Observation{}, err
	}
	uptime, err := numField(canonical, "uptime_percent")
	if err != nil {
		return usagedomain.Observation{}, err
	}

	_, _, err = a.usageRepo.GetOrCreate(ctx,
		&usagedomain.HostedVMUsage{OrderlineID: orderlineID, Start: start, End: end},
		&usagedomain.HostedVMUsage{
			ID:            a.genID.Generate(),
			OrderlineID:   orderlineID,
			Start:         start,
			End:           end,
			Storage:       storage,
			Span:          int64(span),
			UptimePercent: uptime,
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

func (a *hostedVM) Usage(ctx context.Context, start, end int64) ([]usagedomain.Observation, error) {
	rows, err := a.usageRepo.Find(ctx, &usagedomain.HostedVMUsage{},
		option.WithCondition("start >= ? AND \"end\" <= ?", start, end),
	)
	if err != nil {
		return nil, err
	}

	out := make([]usagedomain.Observation, 0, len(rows))
	for _, row := range rows {
		config, err := a.configRepo.FindOne(ctx,
			&usagedomain.HostedVMConfig{OrderlineID: row.OrderlineID},
			option.WithOrder("date DESC"),
		)
		if err != nil {
			return nil, err
		}
		values := map[string]float64{
			"storage":        row.Storage,
			"span":           float64(row.Span),
			"uptime_percent": row.UptimePercent,
		}
		if config != nil {
			values["core"] = float64(config.Core)
			values["ram"] = float64(config.RAM)
		}
		out = append(out, usagedomain.Observation{
			OrderlineID: row.OrderlineID,
			Start:       row.Start,
			End:         row.End,
			Values:      values,
		})
	}
	return out, nil
}

func (a *hostedVM) FeeValue(obs usagedomain.Observation, field string) (float64, error) {
	return obs.Value(field)
}
