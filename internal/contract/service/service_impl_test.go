package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/eresearchbill/reckon/internal/contract/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const accountsJSON = `{"value": [
	{"accountid": "acc-uni", "name": "Flinders University", "_parentaccountid_value": null},
	{"accountid": "acc-cse", "name": "College of Science & Engineering", "_parentaccountid_value": "acc-uni"},
	{"accountid": "acc-solo", "name": "Standalone Institute", "_parentaccountid_value": null}
]}`

const contactsJSON = `{"value": [
	{"fullname": "Some Manager", "email": "some.manager@some.org", "contactid": "ct-1", "unit": "College of Science & Engineering", "unitAccountID": "acc-cse"},
	{"fullname": "Solo Manager", "email": "solo@some.org", "contactid": "ct-2", "unit": "Standalone Institute", "unitAccountID": "acc-solo"}
]}`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestService(t *testing.T, dsn string) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Account{}, &domain.Contact{}, &domain.Order{}, &domain.Orderline{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node})
}

func loadHelpers(t *testing.T) (*domain.AccountDirectory, *domain.ContactRoster) {
	t.Helper()
	dir, err := domain.LoadAccountDirectory(writeFixture(t, "accounts.json", accountsJSON))
	require.NoError(t, err)
	roster, err := domain.LoadContactRoster(writeFixture(t, "contacts.json", contactsJSON))
	require.NoError(t, err)
	return dir, roster
}

func contractRecord() map[string]any {
	return map[string]any{
		"manager":          "Some Manager",
		"manageremail":     "some.manager@some.org",
		"managercontactid": "ct-1",
		"managerunit":      "College of Science & Engineering",
		"biller":           "Flinders University",
		"salesorderid":     "so-1",
		"name":             "MELFU Virtual Machines",
		"orderID":          "FUSA0167",
		"pricelevelID@OData.Community.Display.V1.FormattedValue": "Members Price List",
		"unitPrice":          float64(240),
		"allocated":          float64(16),
		"OpenstackProjectID": "vm-2058",
	}
}

func TestLinkResolvesHierarchyAndBiller(t *testing.T) {
	svc := newTestService(t, "file:contract_link?mode=memory&cache=shared")
	dir, roster := loadHelpers(t)
	ctx := context.Background()

	linkage, err := svc.Link(ctx, dir, roster, contractRecord())
	require.NoError(t, err)
	assert.Equal(t, "Flinders University", linkage.Biller.Name)
	assert.Nil(t, linkage.Biller.ParentID)
	assert.Equal(t, "Some Manager", linkage.Manager.Name)

	// Linking the same record again reuses the existing rows.
	again, err := svc.Link(ctx, dir, roster, contractRecord())
	require.NoError(t, err)
	assert.Equal(t, linkage.Biller.ID, again.Biller.ID)
	assert.Equal(t, linkage.Manager.ID, again.Manager.ID)
}

func TestLinkBillerCanBeTheUnit(t *testing.T) {
	svc := newTestService(t, "file:contract_unit?mode=memory&cache=shared")
	dir, roster := loadHelpers(t)

	record := contractRecord()
	record["biller"] = "College of Science & Engineering"

	linkage, err := svc.Link(context.Background(), dir, roster, record)
	require.NoError(t, err)
	assert.Equal(t, "College of Science & Engineering", linkage.Biller.Name)
	assert.NotNil(t, linkage.Biller.ParentID)
}

func TestLinkUnknownBillerFails(t *testing.T) {
	svc := newTestService(t, "file:contract_badbiller?mode=memory&cache=shared")
	dir, roster := loadHelpers(t)

	record := contractRecord()
	record["biller"] = "Unrelated Corp"

	_, err := svc.Link(context.Background(), dir, roster, record)
	assert.ErrorIs(t, err, domain.ErrLinkage)
}

func TestLinkSingleLevelAccount(t *testing.T) {
	svc := newTestService(t, "file:contract_solo?mode=memory&cache=shared")
	dir, roster := loadHelpers(t)

	record := contractRecord()
	record["manageremail"] = "solo@some.org"
	record["managercontactid"] = "ct-2"
	record["biller"] = "Standalone Institute"

	linkage, err := svc.Link(context.Background(), dir, roster, record)
	require.NoError(t, err)
	assert.Equal(t, "Standalone Institute", linkage.Biller.Name)
	assert.Equal(t, linkage.Biller.ID, linkage.Manager.AccountID)
}

func TestEnsureOrderAndOrderlineIdempotent(t *testing.T) {
	svc := newTestService(t, "file:contract_order?mode=memory&cache=shared")
	dir, roster := loadHelpers(t)
	ctx := context.Background()

	pid, err := snowflake.NewNode(2)
	require.NoError(t, err)
	productID := pid.Generate()

	linkage, err := svc.Link(ctx, dir, roster, contractRecord())
	require.NoError(t, err)

	order, err := svc.EnsureOrder(ctx, contractRecord(), linkage)
	require.NoError(t, err)
	again, err := svc.EnsureOrder(ctx, contractRecord(), linkage)
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)

	line, err := svc.EnsureOrderline(ctx, order, productID, contractRecord(), "OpenstackProjectID", "")
	require.NoError(t, err)
	assert.Equal(t, "vm-2058", line.Identifier)

	composed, err := svc.EnsureOrderline(ctx, order, productID, contractRecord(), "OpenstackProjectID", "vm-2058,hv12")
	require.NoError(t, err)
	assert.NotEqual(t, line.ID, composed.ID)

	found, err := svc.FindOrderline(ctx, "vm-2058,hv12", productID)
	require.NoError(t, err)
	assert.Equal(t, composed.ID, found.ID)
	require.NotNil(t, found.Order)
	assert.Equal(t, "Members Price List", found.Order.PriceList)

	_, err = svc.FindOrderline(ctx, "vm-unknown", productID)
	assert.ErrorIs(t, err, domain.ErrLinkage)
}
