package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/eresearchbill/reckon/internal/catalog/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, dsn string) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Product{}, &domain.Price{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node})
}

func priceRecord(no, list string, amount float64) map[string]any {
	return map[string]any{
		"pricelevel":          list,
		"productpricelevelid": "ppl-" + no + "-" + list,
		"productid":           "crm-" + no,
		"product":             "Product " + no,
		"productnumber":       no,
		"uom":                 "Primary Unit",
		"amount":              amount,
		"productstructure":    "Product",
		"producttype":         "Sales Inventory",
	}
}

func TestLoadPriceListCreatesProductsAndPrices(t *testing.T) {
	svc := newTestService(t, "file:catalog_load?mode=memory&cache=shared")
	ctx := context.Background()

	records := []map[string]any{
		priceRecord("HVM0001", "Member", 2000),
		priceRecord("HVM0001", "Standard", 2400),
		priceRecord("HPC0001", "Member", 100),
	}

	summary, err := svc.LoadPriceList(ctx, records, 1483228800)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 2, summary.ProductsCreated)
	assert.Equal(t, 3, summary.PricesCreated)

	product, err := svc.GetByNo(ctx, "HVM0001")
	require.NoError(t, err)
	assert.Equal(t, "Product HVM0001", product.Name)

	finder, err := svc.FinderFor(ctx, product.ID)
	require.NoError(t, err)
	got, err := finder.Price("Standard", 1483228800, 1483315199)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2400).Equal(got))
}

func TestLoadPriceListIdempotent(t *testing.T) {
	svc := newTestService(t, "file:catalog_idem?mode=memory&cache=shared")
	ctx := context.Background()

	records := []map[string]any{priceRecord("XFS0001", "Member", 250)}

	_, err := svc.LoadPriceList(ctx, records, 1483228800)
	require.NoError(t, err)

	summary, err := svc.LoadPriceList(ctx, records, 1483228800)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProductsCreated)
	assert.Equal(t, 0, summary.PricesCreated)

	// A later effective date for the same list is a new price row.
	summary, err = svc.LoadPriceList(ctx, records, 1514764800)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProductsCreated)
	assert.Equal(t, 1, summary.PricesCreated)
}

func TestLoadPriceListRejectsIncompleteRecord(t *testing.T) {
	svc := newTestService(t, "file:catalog_bad?mode=memory&cache=shared")

	record := priceRecord("HVM0001", "Member", 2000)
	delete(record, "amount")

	_, err := svc.LoadPriceList(context.Background(), []map[string]any{record}, 1483228800)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing amount")
}

func TestGetByNoNotFound(t *testing.T) {
	svc := newTestService(t, "file:catalog_missing?mode=memory&cache=shared")

	_, err := svc.GetByNo(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
