package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessoriesFiltersRelationship(t *testing.T) {
	set, err := ParseSubstitutes([]map[string]any{
		{"productnumber": "HVM0001", "substitutedproductnumber": "HVMSTOR1", "salesrelationshiptype": "Accessory"},
		{"productnumber": "HVM0001", "substitutedproductnumber": "HVM0002", "salesrelationshiptype": "Upgrade"},
		{"productnumber": "HVM0001", "substitutedproductnumber": "HVMBACK1", "salesrelationshiptype": "Accessory"},
		{"productnumber": "HPC0001", "substitutedproductnumber": "HPCQ0001", "salesrelationshiptype": "Accessory"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"HVMSTOR1", "HVMBACK1"}, set.Accessories("HVM0001"))
	assert.Equal(t, []string{"HPCQ0001"}, set.Accessories("HPC0001"))
	assert.Empty(t, set.Accessories("XFS0001"))
}

func TestParseSubstitutesRejectsPartialRow(t *testing.T) {
	_, err := ParseSubstitutes([]map[string]any{
		{"productnumber": "HVM0001", "substitutedproductnumber": "HVMSTOR1"},
	})
	assert.Error(t, err)
}
