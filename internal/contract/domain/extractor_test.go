package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContract() map[string]any {
	return map[string]any{
		"manager":          "Some Manager",
		"manageremail":     "some.manager@some.org",
		"managercontactid": "e4bd71c5",
		"managertitle":     "Post Doctoral Researcher",
		"managerunit":      "College of Science & Engineering",
		"biller":           "Flinders University",
		"salesorderid":     "f9302faa",
		"name":             "MELFU Virtual Machines",
		"orderID":          "FUSA0167",
		"pricelevelID@OData.Community.Display.V1.FormattedValue": "Members Price List",
		"unitPrice":          float64(240),
		"allocated":          float64(16),
		"OpenstackProjectID": "vm-2058",
	}
}

func TestExtractorManager(t *testing.T) {
	info, err := NewExtractor(sampleContract()).Manager()
	require.NoError(t, err)
	assert.Equal(t, "Some Manager", info.Name)
	assert.Equal(t, "some.manager@some.org", info.Email)
	assert.Equal(t, "e4bd71c5", info.ContactID)
	assert.Equal(t, "College of Science & Engineering", info.Unit)
}

func TestExtractorOrder(t *testing.T) {
	info, err := NewExtractor(sampleContract()).Order()
	require.NoError(t, err)
	assert.Equal(t, "FUSA0167", info.No)
	assert.Equal(t, "Members Price List", info.PriceList)
	assert.Equal(t, "f9302faa", info.CRMID)
}

func TestExtractorOrderline(t *testing.T) {
	info, err := NewExtractor(sampleContract()).Orderline("OpenstackProjectID")
	require.NoError(t, err)
	assert.Equal(t, "vm-2058", info.Identifier)
	assert.True(t, decimal.NewFromInt(240).Equal(info.Price))
	assert.True(t, decimal.NewFromInt(16).Equal(info.Quantity))
}

func TestExtractorMissingKeysAreLinkageErrors(t *testing.T) {
	record := sampleContract()
	delete(record, "manageremail")

	_, err := NewExtractor(record).Manager()
	assert.ErrorIs(t, err, ErrLinkage)

	_, err = NewExtractor(record).Orderline("ServerID")
	assert.ErrorIs(t, err, ErrLinkage)
}
