package kinds

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/eresearchbill/reckon/internal/ingestconf"
	usagedomain "github.com/eresearchbill/reckon/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const flavorsJSON = `[
	{"openstack_id": "2", "name": "m1.small", "vcpus": 1, "ram": 2048, "disk": 10, "ephemeral": 0},
	{"openstack_id": "7", "name": "m1.xlarge", "vcpus": 8, "ram": 16384, "disk": 80, "ephemeral": 40}
]`

func cloudVMConfigFixture(t *testing.T) *ingestconf.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flavors.json")
	require.NoError(t, os.WriteFile(path, []byte(flavorsJSON), 0o600))

	cfg, err := ingestconf.New("325620", ingestconf.Usage{
		OriginalData: ingestconf.Source{URL: "http://usage.example/nova"},
		Fields:       map[string]string{"span": "span"},
		Orderline: ingestconf.OrderlineBlock{
			CRMLinker: "tenant",
			Extra: map[string]string{
				"hypervisor": "hypervisor",
				"server":     "server",
				"vcpus":      "vcpus",
				"ram":        "ram",
				"disk":       "disk",
				"ephemeral":  "ephemeral",
				"name":       "flavor",
			},
		},
		FeeField:       feeField("vcpus"),
		FlavorJSONPath: path,
	})
	require.NoError(t, err)
	return cfg
}

func cloudVMRecord(flavor string) map[string]any {
	return map[string]any{
		"server":     "emuwn-default",
		"hypervisor": "cw-compute-05a",
		"flavor":     flavor,
		"tenant":     "bfdd028c",
		"span":       float64(2673418),
	}
}

func cloudVMAdapter(t *testing.T, dsn string) (usagedomain.Adapter, *gorm.DB) {
	t.Helper()
	registry, db := newTestRegistry(t, dsn)
	adapter, err := registry.New(KindCloudVM, cloudVMConfigFixture(t))
	require.NoError(t, err)
	return adapter, db
}

func TestCloudVMConfigResolvesFlavor(t *testing.T) {
	adapter, db := cloudVMAdapter(t, "file:kinds_cloudflavor?mode=memory&cache=shared")

	node, _ := snowflake.NewNode(3)
	lineID := node.Generate()
	ctx := context.Background()

	record := cloudVMRecord("7")
	require.NoError(t, adapter.SaveConfig(ctx, lineID, record))

	var rows []usagedomain.CloudVMConfig
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "m1.xlarge", rows[0].Flavor)
	assert.Equal(t, 8, rows[0].VCPUs)
	assert.Equal(t, 40, rows[0].Ephemeral)

	// The record now carries the resolved profile for later steps.
	obs, err := adapter.SaveUsage(ctx, lineID, 100, 200, record)
	require.NoError(t, err)
	assert.InDelta(t, 8, obs.Values["vcpus"], 1e-9)
	assert.InDelta(t, 2673418, obs.Values["span"], 1e-9)
}

func TestCloudVMConfigImmutableAcrossFlavorChange(t *testing.T) {
	adapter, db := cloudVMAdapter(t, "file:kinds_cloudimm?mode=memory&cache=shared")

	node, _ := snowflake.NewNode(3)
	lineID := node.Generate()
	ctx := context.Background()

	require.NoError(t, adapter.SaveConfig(ctx, lineID, cloudVMRecord("2")))
	require.NoError(t, adapter.SaveConfig(ctx, lineID, cloudVMRecord("2")))

	var count int64
	require.NoError(t, db.Model(&usagedomain.CloudVMConfig{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// A resized instance has a new flavor and gets a distinct identity.
	require.NoError(t, adapter.SaveConfig(ctx, lineID, cloudVMRecord("7")))
	require.NoError(t, db.Model(&usagedomain.CloudVMConfig{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCloudVMUnknownFlavorFailsRecord(t *testing.T) {
	adapter, _ := cloudVMAdapter(t, "file:kinds_cloudbad?mode=memory&cache=shared")

	node, _ := snowflake.NewNode(3)
	err := adapter.SaveConfig(context.Background(), node.Generate(), cloudVMRecord("999"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot map flavor id 999")
}
