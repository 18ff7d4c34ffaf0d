// Package ingest orchestrates a billing run: fetch contracts and usage,
// link them, persist configuration, usage and fees. Records are
// processed strictly in feed order; only configuration and transport
// failures abort a run, everything else skips the offending record.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/eresearchbill/reckon/internal/catalog/domain"
	contractdomain "github.com/eresearchbill/reckon/internal/contract/domain"
	feedomain "github.com/eresearchbill/reckon/internal/fee/domain"
	"github.com/eresearchbill/reckon/internal/feed"
	"github.com/eresearchbill/reckon/internal/ingestconf"
	"github.com/eresearchbill/reckon/internal/observability/metrics"
	usagedomain "github.com/eresearchbill/reckon/internal/usage/domain"
	"github.com/eresearchbill/reckon/internal/usage/kinds"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Options selects what one run ingests.
type Options struct {
	Kind            string
	ConfigPath      string
	Start           int64
	End             int64
	AccountJSON     string
	ContactJSON     string
	SubstitutesJSON string
	SkipFees        bool
}

// Summary reports what a run did. Skipped records are also logged one
// by one with their linking key.
type Summary struct {
	Processed int
	Skipped   int
	Fees      int
}

type RunnerParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Registry *kinds.Registry
	Feed     *feed.Client
	Catalog  catalogdomain.Service
	Contract contractdomain.Service
	Fees     feedomain.Service
	Metrics  *metrics.Metrics
}

type Runner struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	registry *kinds.Registry
	feed     *feed.Client
	catalog  catalogdomain.Service
	contract contractdomain.Service
	fees     feedomain.Service
	metrics  *metrics.Metrics
}

func NewRunner(p RunnerParam) *Runner {
	return &Runner{
		db:       p.DB,
		log:      p.Log.Named("ingest.runner"),
		genID:    p.GenID,
		registry: p.Registry,
		feed:     p.Feed,
		catalog:  p.Catalog,
		contract: p.Contract,
		fees:     p.Fees,
		metrics:  p.Metrics,
	}
}

// setup is everything a run resolves before touching a record. Any
// failure here aborts the run.
type setup struct {
	entry   ingestconf.Entry
	cfg     *ingestconf.Config
	product *catalogdomain.Product
	adapter usagedomain.Adapter
	subs    *catalogdomain.SubstituteSet
}

func (r *Runner) prepare(ctx context.Context, opts Options) (*setup, error) {
	file, err := ingestconf.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	entry, err := file.Entry(opts.Kind)
	if err != nil {
		return nil, err
	}
	cfg, err := file.Config(opts.Kind)
	if err != nil {
		return nil, err
	}
	product, err := r.catalog.GetByNo(ctx, cfg.ProductNo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ingestconf.ErrConfiguration, err)
	}
	adapter, err := r.registry.New(opts.Kind, cfg)
	if err != nil {
		return nil, err
	}

	var subs *catalogdomain.SubstituteSet
	if opts.SubstitutesJSON != "" {
		subs, err = loadSubstitutes(opts.SubstitutesJSON)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ingestconf.ErrConfiguration, err)
		}
	}
	return &setup{entry: entry, cfg: cfg, product: product, adapter: adapter, subs: subs}, nil
}

func loadSubstitutes(path string) (*catalogdomain.SubstituteSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("substitutes %s: %w", path, err)
	}
	return catalogdomain.ParseSubstitutes(records)
}

// indexContracts keys the contract feed by its linking identifier.
// Records missing the identifier can never match usage and are dropped
// with a log entry.
func (r *Runner) indexContracts(records []map[string]any, key string) map[string]map[string]any {
	index := make(map[string]map[string]any, len(records))
	for _, record := range records {
		v, ok := record[key]
		if !ok {
			r.log.Warn("contract record missing linking identifier", zap.String("identifier", key))
			continue
		}
		index[fmt.Sprint(v)] = record
	}
	return index
}

// Run executes a full ingestion for one kind and window.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	var summary Summary

	set, err := r.prepare(ctx, opts)
	if err != nil {
		return summary, err
	}
	dir, err := contractdomain.LoadAccountDirectory(opts.AccountJSON)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ingestconf.ErrConfiguration, err)
	}
	roster, err := contractdomain.LoadContactRoster(opts.ContactJSON)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ingestconf.ErrConfiguration, err)
	}

	var calc feedomain.Calculator
	if !opts.SkipFees {
		calc, err = r.fees.NewCalculator(ctx, set.product, set.cfg, set.subs)
		if err != nil {
			return summary, err
		}
	}

	contracts, err := r.feed.FetchJSON(ctx, set.entry.CRM.URL, nil, nil)
	if err != nil {
		r.metrics.FeedError(opts.Kind)
		return summary, err
	}
	contractIndex := r.indexContracts(contracts, set.entry.CRM.Identifier)

	usages, err := set.adapter.FetchUsage(ctx, opts.Start, opts.End)
	if err != nil {
		r.metrics.FeedError(opts.Kind)
		return summary, err
	}

	r.log.Info("ingesting usage",
		zap.String("kind", opts.Kind),
		zap.String("product_no", set.cfg.ProductNo),
		zap.Int64("start", opts.Start),
		zap.Int64("end", opts.End),
		zap.Int("contracts", len(contractIndex)),
		zap.Int("records", len(usages)),
	)

	linker := set.cfg.LinkerField()
	for _, usage := range usages {
		linkValue := fmt.Sprint(usage[linker])
		if err := r.processRecord(ctx, set, dir, roster, contractIndex, calc, opts, usage); err != nil {
			summary.Skipped++
			r.metrics.RecordSkipped(opts.Kind, skipReason(err))
			r.archiveSkipped(ctx, opts.Kind, err, usage)
			r.log.Warn("usage record skipped",
				zap.String("kind", opts.Kind),
				zap.String("linker", linker),
				zap.String("link_value", linkValue),
				zap.Error(err),
			)
			continue
		}
		summary.Processed++
		r.metrics.RecordProcessed(opts.Kind)
		if calc != nil {
			summary.Fees++
			r.metrics.FeeComputed(opts.Kind)
		}
	}

	r.log.Info("ingestion finished",
		zap.String("kind", opts.Kind),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("fees", summary.Fees),
	)
	return summary, nil
}

// processRecord runs the per-record chain. Any returned error skips the
// record only.
func (r *Runner) processRecord(
	ctx context.Context,
	set *setup,
	dir *contractdomain.AccountDirectory,
	roster *contractdomain.ContactRoster,
	contractIndex map[string]map[string]any,
	calc feedomain.Calculator,
	opts Options,
	usage map[string]any,
) error {
	linkValue, ok := usage[set.cfg.LinkerField()]
	if !ok {
		return fmt.Errorf("%w: usage record missing linker %q", contractdomain.ErrLinkage, set.cfg.LinkerField())
	}
	contract, ok := contractIndex[fmt.Sprint(linkValue)]
	if !ok {
		return fmt.Errorf("%w: no contract for %q", contractdomain.ErrLinkage, fmt.Sprint(linkValue))
	}

	// The joined record: contract fields plus the usage observation,
	// usage winning on conflicts.
	merged := make(map[string]any, len(contract)+len(usage))
	for k, v := range contract {
		merged[k] = v
	}
	for k, v := range usage {
		merged[k] = v
	}

	linkage, err := r.contract.Link(ctx, dir, roster, merged)
	if err != nil {
		return err
	}
	order, err := r.contract.EnsureOrder(ctx, merged, linkage)
	if err != nil {
		return err
	}
	identifier, err := set.cfg.ComposeIdentifier(usage)
	if err != nil {
		return fmt.Errorf("%w: %v", contractdomain.ErrLinkage, err)
	}
	line, err := r.contract.EnsureOrderline(ctx, order, set.product.ID, merged, set.cfg.LinkerField(), identifier)
	if err != nil {
		return err
	}

	if err := set.adapter.SaveConfig(ctx, line.ID, usage); err != nil {
		return err
	}
	obs, err := set.adapter.SaveUsage(ctx, line.ID, opts.Start, opts.End, usage)
	if err != nil {
		return err
	}

	if calc == nil {
		return nil
	}
	amount, err := calc.Fee(ctx, set.adapter, obs, order.PriceList)
	if err != nil {
		return err
	}
	return r.fees.SaveFee(ctx, line.ID, obs.Start, obs.End, amount)
}

// IngestContracts creates orders and orderlines from the contract feed
// alone, without usage data. Orderlines keep the raw CRM identifier.
func (r *Runner) IngestContracts(ctx context.Context, opts Options) (Summary, error) {
	var summary Summary

	set, err := r.prepare(ctx, opts)
	if err != nil {
		return summary, err
	}
	dir, err := contractdomain.LoadAccountDirectory(opts.AccountJSON)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ingestconf.ErrConfiguration, err)
	}
	roster, err := contractdomain.LoadContactRoster(opts.ContactJSON)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ingestconf.ErrConfiguration, err)
	}

	contracts, err := r.feed.FetchJSON(ctx, set.entry.CRM.URL, nil, nil)
	if err != nil {
		r.metrics.FeedError(opts.Kind)
		return summary, err
	}

	for _, contract := range contracts {
		if err := r.ingestContract(ctx, set, dir, roster, contract); err != nil {
			summary.Skipped++
			r.metrics.RecordSkipped(opts.Kind, skipReason(err))
			r.archiveSkipped(ctx, opts.Kind, err, contract)
			r.log.Warn("contract record skipped", zap.String("kind", opts.Kind), zap.Error(err))
			continue
		}
		summary.Processed++
		r.metrics.RecordProcessed(opts.Kind)
	}
	return summary, nil
}

func (r *Runner) ingestContract(ctx context.Context, set *setup, dir *contractdomain.AccountDirectory, roster *contractdomain.ContactRoster, contract map[string]any) error {
	linkage, err := r.contract.Link(ctx, dir, roster, contract)
	if err != nil {
		return err
	}
	order, err := r.contract.EnsureOrder(ctx, contract, linkage)
	if err != nil {
		return err
	}
	_, err = r.contract.EnsureOrderline(ctx, order, set.product.ID, contract, set.entry.CRM.Identifier, "")
	return err
}

// CalculateFees walks previously ingested usage for a window and
// (re)computes fees idempotently.
func (r *Runner) CalculateFees(ctx context.Context, opts Options) (Summary, error) {
	var summary Summary

	set, err := r.prepare(ctx, opts)
	if err != nil {
		return summary, err
	}
	calc, err := r.fees.NewCalculator(ctx, set.product, set.cfg, set.subs)
	if err != nil {
		return summary, err
	}

	observations, err := set.adapter.Usage(ctx, opts.Start, opts.End)
	if err != nil {
		return summary, err
	}

	for _, obs := range observations {
		if err := r.feeForObservation(ctx, set, calc, obs); err != nil {
			summary.Skipped++
			r.metrics.RecordSkipped(opts.Kind, skipReason(err))
			r.log.Warn("fee computation skipped",
				zap.String("kind", opts.Kind),
				zap.Int64("orderline_id", int64(obs.OrderlineID)),
				zap.Error(err),
			)
			continue
		}
		summary.Processed++
		summary.Fees++
		r.metrics.FeeComputed(opts.Kind)
	}

	r.log.Info("fee calculation finished",
		zap.String("kind", opts.Kind),
		zap.Int("fees", summary.Fees),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (r *Runner) feeForObservation(ctx context.Context, set *setup, calc feedomain.Calculator, obs usagedomain.Observation) error {
	line, err := r.contract.GetOrderline(ctx, obs.OrderlineID)
	if err != nil {
		return err
	}
	if line.Order == nil {
		return fmt.Errorf("orderline %d has no order attached", obs.OrderlineID)
	}
	amount, err := calc.Fee(ctx, set.adapter, obs, line.Order.PriceList)
	if err != nil {
		return err
	}
	return r.fees.SaveFee(ctx, line.ID, obs.Start, obs.End, amount)
}

// archiveSkipped keeps the raw payload of a skipped record. Failures
// here only log, a full dead-letter table must never abort a run.
func (r *Runner) archiveSkipped(ctx context.Context, kind string, cause error, record map[string]any) {
	row := &SkippedRecord{
		ID:     r.genID.Generate(),
		Kind:   kind,
		Reason: skipReason(cause),
		Detail: cause.Error(),
		Record: datatypes.JSONMap(record),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		r.log.Warn("cannot archive skipped record", zap.Error(err))
	}
}

// skipReason coarsely classifies a per-record failure for the skip
// counter labels.
func skipReason(err error) string {
	var priceErr *catalogdomain.PriceNotFoundError
	switch {
	case errors.Is(err, contractdomain.ErrLinkage):
		return "linkage"
	case errors.As(err, &priceErr):
		return "price"
	default:
		return "persistence"
	}
}

var Module = fx.Module("ingest.runner",
	fx.Provide(NewRunner),
)
