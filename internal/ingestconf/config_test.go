package ingestconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validUsage() Usage {
	fee := "vcpus"
	return Usage{
		OriginalData: Source{URL: "https://reporting.example.edu/usage/nova"},
		Fields:       map[string]string{"span": "span"},
		Orderline: OrderlineBlock{
			CRMLinker: "tenant",
			Extra:     map[string]string{"vcpus": "vcpus", "ram": "ram"},
		},
		FeeField: &fee,
	}
}

func TestNewValid(t *testing.T) {
	cfg, err := New("325620", validUsage())
	require.NoError(t, err)

	assert.Equal(t, "325620", cfg.ProductNo)
	assert.Equal(t, "https://reporting.example.edu/usage/nova", cfg.URL())
	assert.Equal(t, "tenant", cfg.LinkerField())
	assert.False(t, cfg.IsComposed())

	field, err := cfg.FeeField()
	require.NoError(t, err)
	assert.Equal(t, "vcpus", field)
}

func TestNewMissingURL(t *testing.T) {
	raw := validUsage()
	raw.OriginalData.URL = ""
	_, err := New("325620", raw)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestNewMissingLinker(t *testing.T) {
	raw := validUsage()
	raw.Orderline.CRMLinker = ""
	_, err := New("325620", raw)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestFeeFieldCompositionMutualExclusion(t *testing.T) {
	both := validUsage()
	both.Composition = map[string]string{"325621": "span"}
	_, err := New("325620", both)
	require.ErrorIs(t, err, ErrConfiguration)

	neither := validUsage()
	neither.FeeField = nil
	_, err = New("325620", neither)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestComposedConfiguration(t *testing.T) {
	raw := validUsage()
	raw.FeeField = nil
	raw.Composition = map[string]string{"325621": "cpu_seconds"}

	cfg, err := New("325620", raw)
	require.NoError(t, err)
	assert.True(t, cfg.IsComposed())
	assert.Equal(t, map[string]string{"325621": "cpu_seconds"}, cfg.Composition())

	_, err = cfg.FeeField()
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestIdentifierFieldsSorted(t *testing.T) {
	raw := validUsage()
	raw.Orderline.Aggregators = []string{"queue", "az"}
	cfg, err := New("325620", raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"tenant", "az", "queue"}, cfg.IdentifierFields())

	got, err := cfg.ComposeIdentifier(map[string]any{"tenant": "t1", "az": "sa", "queue": "batch"})
	require.NoError(t, err)
	assert.Equal(t, "t1,sa,batch", got)
}

func TestLoadFile(t *testing.T) {
	content := `{
	  "Cloudvm": {
	    "product-no": "325620",
	    "CRM": {"url": "http://crm.example.edu/contract/cloudvm/", "identifier": "ProjectID"},
	    "USAGE": {
	      "original-data": {"url": "https://reporting.example.edu/usage/nova"},
	      "fields": {"span": "span"},
	      "orderline": {"crm-linker": "tenant", "extra": {"vcpus": "vcpus"}},
	      "fee-field": "vcpus"
	    }
	  }
	}`
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	file, err := Load(path)
	require.NoError(t, err)

	entry, err := file.Entry("cloudvm")
	require.NoError(t, err)
	assert.Equal(t, "ProjectID", entry.CRM.Identifier)

	cfg, err := file.Config("CLOUDVM")
	require.NoError(t, err)
	assert.Equal(t, "325620", cfg.ProductNo)

	_, err = file.Entry("hpc")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrConfiguration)
}
