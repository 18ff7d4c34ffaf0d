package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/eresearchbill/reckon/internal/catalog/domain"
	catalogservice "github.com/eresearchbill/reckon/internal/catalog/service"
	"github.com/eresearchbill/reckon/internal/config"
	contractdomain "github.com/eresearchbill/reckon/internal/contract/domain"
	contractservice "github.com/eresearchbill/reckon/internal/contract/service"
	feedomain "github.com/eresearchbill/reckon/internal/fee/domain"
	feeservice "github.com/eresearchbill/reckon/internal/fee/service"
	"github.com/eresearchbill/reckon/internal/feed"
	"github.com/eresearchbill/reckon/internal/ingestconf"
	"github.com/eresearchbill/reckon/internal/observability/metrics"
	usagedomain "github.com/eresearchbill/reckon/internal/usage/domain"
	"github.com/eresearchbill/reckon/internal/usage/kinds"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	windowStart = int64(1483228800)
	windowEnd   = windowStart + 3600
)

// world wires a runner against an in-memory database and httptest feeds.
type world struct {
	db     *gorm.DB
	node   *snowflake.Node
	runner *Runner
	server *httptest.Server

	contracts []map[string]any
	usage     []map[string]any
	crmStatus int
}

func newWorld(t *testing.T, dsn string) *world {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Product{}, &catalogdomain.Price{},
		&contractdomain.Account{}, &contractdomain.Contact{}, &contractdomain.Manager{},
		&contractdomain.Order{}, &contractdomain.Orderline{},
		&usagedomain.HPCUsage{},
		&feedomain.Fee{},
		&SkippedRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	w := &world{db: db, node: node, crmStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/crm", func(rw http.ResponseWriter, _ *http.Request) {
		if w.crmStatus != http.StatusOK {
			rw.WriteHeader(w.crmStatus)
			return
		}
		require.NoError(t, json.NewEncoder(rw).Encode(w.contracts))
	})
	mux.HandleFunc("/usage", func(rw http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(rw).Encode(w.usage))
	})
	w.server = httptest.NewServer(mux)
	t.Cleanup(w.server.Close)

	feedClient := feed.NewClient(0, log)
	catalogSvc := catalogservice.NewService(catalogservice.ServiceParam{DB: db, Log: log, GenID: node})
	contractSvc := contractservice.NewService(contractservice.ServiceParam{DB: db, Log: log, GenID: node})
	feeSvc := feeservice.NewService(feeservice.ServiceParam{
		Config: config.Config{AdminEmailDomain: "ersa.edu.au"}, DB: db, Log: log, GenID: node, Catalog: catalogSvc,
	})
	registry := kinds.NewRegistry(kinds.RegistryParam{DB: db, Log: log, GenID: node, Feed: feedClient})

	w.runner = NewRunner(RunnerParam{
		DB:       db,
		Log:      log,
		GenID:    node,
		Registry: registry,
		Feed:     feedClient,
		Catalog:  catalogSvc,
		Contract: contractSvc,
		Fees:     feeSvc,
		Metrics:  metrics.New(config.Config{Environment: "test"}),
	})
	return w
}

func (w *world) addProduct(t *testing.T, no string, yearly int64) {
	t.Helper()
	product := &catalogdomain.Product{
		ID: w.node.Generate(), CRMID: "crm-" + no, No: no, Name: "Product " + no,
		Type: catalogdomain.TypeService, Structure: "Product",
	}
	require.NoError(t, w.db.Create(product).Error)
	require.NoError(t, w.db.Create(&catalogdomain.Price{
		ID: w.node.Generate(), ProductID: product.ID, ListName: "Member",
		Date: windowStart - 86400, Amount: decimal.NewFromInt(yearly),
	}).Error)
}

func (w *world) options(t *testing.T, kind string) Options {
	t.Helper()
	dir := t.TempDir()

	configJSON := fmt.Sprintf(`{
	  "Hpc": {
	    "product-no": "HPC0001",
	    "CRM": {"url": %q, "identifier": "owner"},
	    "USAGE": {
	      "original-data": {"url": %q},
	      "fields": {"partition": "partition", "cpu_seconds": "cpu_seconds", "count": "count"},
	      "orderline": {"crm-linker": "owner", "aggregators": ["partition"]},
	      "fee-field": "cpu_seconds"
	    }
	  }
	}`, w.server.URL+"/crm", w.server.URL+"/usage")

	accountsJSON := `{"value": [
	  {"accountid": "acc-uni", "name": "University of Adelaide", "_parentaccountid_value": null},
	  {"accountid": "acc-cse", "name": "School of Computer Science", "_parentaccountid_value": "acc-uni"}
	]}`
	contactsJSON := `{"value": [
	  {"fullname": "Alice Chan", "email": "alice@uni.edu", "contactid": "ct-alice",
	   "unit": "School of Computer Science", "unitAccountID": "acc-cse"},
	  {"fullname": "Bob Reid", "email": "bob@uni.edu", "contactid": "ct-bob",
	   "unit": "School of Computer Science", "unitAccountID": "acc-cse"}
	]}`

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	return Options{
		Kind:        kind,
		ConfigPath:  write("config.json", configJSON),
		Start:       windowStart,
		End:         windowEnd,
		AccountJSON: write("accounts.json", accountsJSON),
		ContactJSON: write("contacts.json", contactsJSON),
	}
}

func contractRecord(owner, email, name string) map[string]any {
	return map[string]any{
		"owner":            owner,
		"manager":          name,
		"manageremail":     email,
		"managercontactid": "ct-" + owner,
		"managerunit":      "School of Computer Science",
		"biller":           "University of Adelaide",
		"salesorderid":     "so-" + owner,
		"name":             "eRSA Order - " + name,
		"orderID":          "ORD-" + owner,
		"unitPrice":        120.0,
		"allocated":        1.0,
		"pricelevelID@OData.Community.Display.V1.FormattedValue": "Member",
	}
}

func hpcRecord(owner string, cpuSeconds float64) map[string]any {
	return map[string]any{
		"owner":       owner,
		"partition":   "batch",
		"cpu_seconds": cpuSeconds,
		"count":       12.0,
	}
}

func TestRunSkipsUnmatchedAndContinues(t *testing.T) {
	w := newWorld(t, "file:ingest_run?mode=memory&cache=shared")
	w.addProduct(t, "HPC0001", 1200)

	w.contracts = []map[string]any{
		contractRecord("alice", "alice@uni.edu", "Alice Chan"),
		contractRecord("bob", "bob@uni.edu", "Bob Reid"),
	}
	w.usage = []map[string]any{
		hpcRecord("alice", 3600),
		hpcRecord("ghost", 7200),
		hpcRecord("bob", 1800),
	}

	summary, err := w.runner.Run(context.Background(), w.options(t, "hpc"))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Fees)

	var fees []feedomain.Fee
	require.NoError(t, w.db.Order("amount DESC").Find(&fees).Error)
	require.Len(t, fees, 2)

	// 3600 cpu seconds over a one-hour window at 1200 a year.
	expected := decimal.NewFromInt(3600 * 1200).Div(decimal.NewFromInt(feedomain.SecondsPerYear))
	assert.True(t, fees[0].Amount.Sub(expected).Abs().LessThan(decimal.NewFromFloat(1e-9)),
		"got %s, want %s", fees[0].Amount, expected)

	var lines []contractdomain.Orderline
	require.NoError(t, w.db.Find(&lines).Error)
	assert.Len(t, lines, 2)

	var skipped []SkippedRecord
	require.NoError(t, w.db.Find(&skipped).Error)
	require.Len(t, skipped, 1)
	assert.Equal(t, "linkage", skipped[0].Reason)
	assert.Equal(t, "ghost", skipped[0].Record["owner"])
}

func TestRunIsIdempotent(t *testing.T) {
	w := newWorld(t, "file:ingest_idem?mode=memory&cache=shared")
	w.addProduct(t, "HPC0001", 1200)

	w.contracts = []map[string]any{contractRecord("alice", "alice@uni.edu", "Alice Chan")}
	w.usage = []map[string]any{hpcRecord("alice", 3600)}

	opts := w.options(t, "hpc")
	_, err := w.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	_, err = w.runner.Run(context.Background(), opts)
	require.NoError(t, err)

	var feeCount, usageCount int64
	require.NoError(t, w.db.Model(&feedomain.Fee{}).Count(&feeCount).Error)
	require.NoError(t, w.db.Model(&usagedomain.HPCUsage{}).Count(&usageCount).Error)
	assert.EqualValues(t, 1, feeCount)
	assert.EqualValues(t, 1, usageCount)
}

func TestRunSkipFeesThenCalculate(t *testing.T) {
	w := newWorld(t, "file:ingest_calc?mode=memory&cache=shared")
	w.addProduct(t, "HPC0001", 1200)

	w.contracts = []map[string]any{contractRecord("alice", "alice@uni.edu", "Alice Chan")}
	w.usage = []map[string]any{hpcRecord("alice", 3600)}

	opts := w.options(t, "hpc")
	opts.SkipFees = true
	summary, err := w.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Fees)

	var feeCount int64
	require.NoError(t, w.db.Model(&feedomain.Fee{}).Count(&feeCount).Error)
	assert.EqualValues(t, 0, feeCount)

	opts.SkipFees = false
	summary, err = w.runner.CalculateFees(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Fees)

	require.NoError(t, w.db.Model(&feedomain.Fee{}).Count(&feeCount).Error)
	assert.EqualValues(t, 1, feeCount)
}

func TestRunAbortsOnTransportFailure(t *testing.T) {
	w := newWorld(t, "file:ingest_transport?mode=memory&cache=shared")
	w.addProduct(t, "HPC0001", 1200)
	w.crmStatus = http.StatusBadGateway

	_, err := w.runner.Run(context.Background(), w.options(t, "hpc"))
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrTransport)
}

func TestRunAbortsOnUnknownKind(t *testing.T) {
	w := newWorld(t, "file:ingest_kind?mode=memory&cache=shared")
	w.addProduct(t, "HPC0001", 1200)

	opts := w.options(t, "hpc")
	opts.Kind = "mainframe"
	_, err := w.runner.Run(context.Background(), opts)
	assert.ErrorIs(t, err, ingestconf.ErrConfiguration)
}

func TestRunAbortsOnUnknownProduct(t *testing.T) {
	w := newWorld(t, "file:ingest_product?mode=memory&cache=shared")

	_, err := w.runner.Run(context.Background(), w.options(t, "hpc"))
	assert.ErrorIs(t, err, ingestconf.ErrConfiguration)
}

func TestIngestContractsAlone(t *testing.T) {
	w := newWorld(t, "file:ingest_contracts?mode=memory&cache=shared")
	w.addProduct(t, "HPC0001", 1200)

	w.contracts = []map[string]any{
		contractRecord("alice", "alice@uni.edu", "Alice Chan"),
		contractRecord("nobody", "carol@elsewhere.org", "Carol Unknown"),
	}

	summary, err := w.runner.IngestContracts(context.Background(), w.options(t, "hpc"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)

	var line contractdomain.Orderline
	require.NoError(t, w.db.First(&line).Error)
	assert.Equal(t, "alice", line.Identifier)
}
