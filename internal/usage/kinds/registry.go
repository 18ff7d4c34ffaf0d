package kinds

import (
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/eresearchbill/reckon/internal/feed"
	"github.com/eresearchbill/reckon/internal/ingestconf"
	usagedomain "github.com/eresearchbill/reckon/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kind names form a closed set. An unknown name is a configuration
// error and aborts the run before any record is touched.
const (
	KindCloudVM  = "cloudvm"
	KindHostedVM = "hostedvm"
	KindXFS      = "xfs"
	KindHNASVV   = "hnasvv"
	KindHNASFS   = "hnasfs"
	KindHCP      = "hcp"
	KindHPC      = "hpc"
)

// UsageTable maps a kind to the table its usage observations persist
// in. The four storage kinds share one table.
func UsageTable(kind string) (string, error) {
	switch kind {
	case KindCloudVM:
		return usagedomain.CloudVMUsage{}.TableName(), nil
	case KindHostedVM:
		return usagedomain.HostedVMUsage{}.TableName(), nil
	case KindXFS, KindHNASVV, KindHNASFS, KindHCP:
		return usagedomain.StorageUsage{}.TableName(), nil
	case KindHPC:
		return usagedomain.HPCUsage{}.TableName(), nil
	}
	return "", fmt.Errorf("%w: unknown usage kind %q", ingestconf.ErrConfiguration, kind)
}

type RegistryParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Feed  *feed.Client
}

// Registry builds usage adapters by kind name.
type Registry struct {
	p         RegistryParam
	factories map[string]func(base) (usagedomain.Adapter, error)
}

func NewRegistry(p RegistryParam) *Registry {
	r := &Registry{p: p}
	r.factories = map[string]func(base) (usagedomain.Adapter, error){
		KindCloudVM:  newCloudVM,
		KindHostedVM: newHostedVM,
		KindXFS:      newStorageKind(backendXFS),
		KindHNASVV:   newStorageKind(backendHNASVV),
		KindHNASFS:   newStorageKind(backendHNASFS),
		KindHCP:      newStorageKind(backendHCP),
		KindHPC:      newHPC,
	}
	return r
}

// Names lists the registered kinds, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the adapter for a kind with its ingestion configuration.
func (r *Registry) New(kind string, cfg *ingestconf.Config) (usagedomain.Adapter, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown usage kind %q", ingestconf.ErrConfiguration, kind)
	}
	return factory(base{
		kind:  kind,
		cfg:   cfg,
		db:    r.p.DB,
		log:   r.p.Log.Named("usage." + kind),
		genID: r.p.GenID,
		feed:  r.p.Feed,
	})
}
