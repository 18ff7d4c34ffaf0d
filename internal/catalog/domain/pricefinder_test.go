package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(list string, date int64, amount int64) Price {
	return Price{ListName: list, Date: date, Amount: decimal.NewFromInt(amount)}
}

func TestPriceLatestEffectiveBeforeWindow(t *testing.T) {
	finder := NewPriceFinder([]Price{
		price("Member", 100, 10),
		price("Member", 200, 20),
	})

	got, err := finder.Price("Member", 150, 180)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(got))
}

func TestPriceEffectiveMidWindow(t *testing.T) {
	finder := NewPriceFinder([]Price{
		price("Member", 100, 10),
		price("Member", 200, 20),
	})

	// Window starts before any price exists but a price becomes
	// effective inside it.
	got, err := finder.Price("Member", 90, 150)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(got))
}

func TestPriceNewestQualifyingWinsWhenWindowSpansChanges(t *testing.T) {
	finder := NewPriceFinder([]Price{
		price("Member", 100, 10),
		price("Member", 150, 15),
	})

	got, err := finder.Price("Member", 90, 180)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15).Equal(got))
}

func TestPriceInputOrderIrrelevant(t *testing.T) {
	a := NewPriceFinder([]Price{price("Member", 100, 10), price("Member", 200, 20)})
	b := NewPriceFinder([]Price{price("Member", 200, 20), price("Member", 100, 10)})

	fromA, err := a.Price("Member", 250, 300)
	require.NoError(t, err)
	fromB, err := b.Price("Member", 250, 300)
	require.NoError(t, err)
	assert.True(t, fromA.Equal(fromB))
	assert.True(t, decimal.NewFromInt(20).Equal(fromA))
}

func TestPriceNotFound(t *testing.T) {
	finder := NewPriceFinder([]Price{price("Member", 100, 10)})

	_, err := finder.Price("Member", 10, 50)
	require.Error(t, err)
	var notFound *PriceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Member", notFound.ListName)

	_, err = finder.Price("Academic", 150, 200)
	assert.Error(t, err)
}

func TestLatest(t *testing.T) {
	finder := NewPriceFinder([]Price{
		price("Member", 100, 10),
		price("Member", 200, 20),
	})
	got, err := finder.Latest("Member")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(got))

	_, err = finder.Latest("Academic")
	assert.Error(t, err)
}
