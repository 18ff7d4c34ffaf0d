package kinds

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/eresearchbill/reckon/internal/ingestconf"
	usagedomain "github.com/eresearchbill/reckon/internal/usage/domain"
	"github.com/eresearchbill/reckon/pkg/db/option"
	"github.com/eresearchbill/reckon/pkg/repository"
)

// cloudVM handles flavor-based cloud instances. The raw feed only
// carries a flavor id; the hardware profile comes from the flavor side
// table and is merged into the record before anything is stored.
type cloudVM struct {
	base
	flavors    usagedomain.FlavorTable
	configRepo repository.Repository[usagedomain.CloudVMConfig]
	usageRepo  repository.Repository[usagedomain.CloudVMUsage]
}

func newCloudVM(b base) (usagedomain.Adapter, error) {
	path := b.cfg.FlavorPath()
	if path == "" {
		return nil, fmt.Errorf("%w: cloudvm requires flavor-json-path", ingestconf.ErrConfiguration)
	}
	flavors, err := usagedomain.LoadFlavorTable(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ingestconf.ErrConfiguration, err)
	}
	return &cloudVM{
		base:       b,
		flavors:    flavors,
		configRepo: repository.ProvideStore[usagedomain.CloudVMConfig](b.db),
		usageRepo:  repository.ProvideStore[usagedomain.CloudVMUsage](b.db),
	}, nil
}

// FetchUsage reads pre-aggregated window files instead of a query
// endpoint; the reporting exporter writes one file per window.
func (a *cloudVM) FetchUsage(ctx context.Context, start, end int64) ([]map[string]any, error) {
	url := fmt.Sprintf("%s/NovaUsage_%d_%d.json", a.cfg.URL(), start, end)
	return a.feed.FetchJSON(ctx, url, nil, a.cfg.Headers())
}

func (a *cloudVM) SaveConfig(ctx context.Context, orderlineID snowflake.ID, record map[string]any) error {
	flavorID, err := strField(record, "flavor")
	if err != nil {
		return err
	}
	spec, err := a.flavors.Get(flavorID)
	if err != nil {
		return err
	}
	// Enrich the record so later steps see the resolved hardware profile.
	record["vcpus"] = spec.VCPUs
	record["ram"] = spec.RAM
	record["disk"] = spec.Disk
	record["ephemeral"] = spec.Ephemeral
	record["name"] = spec.Name

	mapped := make(map[string]any, len(a.cfg.ExtraMap()))
	for source, target := range a.cfg.ExtraMap() {
		v, ok := record[source]
		if !ok {
			return fmt.Errorf("missing field %q for %s configuration", source, a.kind)
		}
		mapped[target] = v
	}

	server, err := strField(mapped, "server")
	if err != nil {
		return err
	}
	flavorName, err := strField(mapped, "flavor")
	if err != nil {
		return err
	}
	hypervisor, _ := strField(mapped, "hypervisor")
	vcpus, err := numField(mapped, "vcpus")
	if err != nil {
		return err
	}
	ram, err := numField(mapped, "ram")
	if err != nil {
		return err
	}
	disk, err := numField(mapped, "disk")
	if err != nil {
		return err
	}
	ephemeral, err := numField(mapped, "ephemeral")
	if err != nil {
		return err
	}

	_, _, err = a.configRepo.GetOrCreate(ctx,
		&usagedomain.CloudVMConfig{OrderlineID: orderlineID, Server: server, Flavor: flavorName},
		&usagedomain.CloudVMConfig{
			ID:          a.genID.Generate(),
			OrderlineID: orderlineID,
			Server:      server,
			Hypervisor:  hypervisor,
			Flavor:      flavorName,
			VCPUs:       int(vcpus),
			RAM:         int(ram),
			Disk:        int(disk),
			Ephemeral:   int(ephemeral),
			Date:        time.Now().Unix(),
		},
	)
	return err
}

func (a *cloudVM) SaveUsage(ctx context.Context, orderlineID snowflake.ID, start, end int64, record map[string]any) (usagedomain.Observation, error) {
	canonical, err := a.canonical(record)
	if err != nil {
		return usagedomain.Observation{}, err
	}
	span, err := numField(canonical, "span")
	if err != nil {
		return usagedomain.Observation{}, err
	}

	_, _, err = a.usageRepo.GetOrCreate(ctx,
		&usagedomain.CloudVMUsage{OrderlineID: orderlineID, Start: start, End: end},
		&usagedomain.CloudVMUsage{
			ID:          a.genID.Generate(),
			OrderlineID: orderlineID,
			Start:       start,
			End:         end,
			Span:        int64(span),
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

func (a *cloudVM) Usage(ctx context.Context, start, end int64) ([]usagedomain.Observation, error) {
	rows, err := a.usageRepo.Find(ctx, &usagedomain.CloudVMUsage{},
		option.WithCondition("start >= ? AND \"end\" <= ?", start, end),
	)
	if err != nil {
		return nil, err
	}

	out := make([]usagedomain.Observation, 0, len(rows))
	for _, row := range rows {
		config, err := a.configRepo.FindOne(ctx,
			&usagedomain.CloudVMConfig{OrderlineID: row.OrderlineID},
			option.WithOrder("date DESC"),
		)
		if err != nil {
			return nil, err
		}
		values := map[string]float64{"span": float64(row.Span)}
		if config != nil {
			values["vcpus"] = float64(config.VCPUs)
			values["ram"] = float64(config.RAM)
			values["disk"] = float64(config.Disk)
			values["ephemeral"] = float64(config.Ephemeral)
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

func (a *cloudVM) FeeValue(obs usagedomain.Observation, field string) (float64, error) {
	return obs.Value(field)
}
