package domain

import (
	"encoding/json"
	"fmt"
	"os"
)

// FlavorSpec is the hardware profile behind a cloud VM flavor id.
type FlavorSpec struct {
	Name      string `json:"name"`
	VCPUs     int    `json:"vcpus"`
	RAM       int    `json:"ram"`
	Disk      int    `json:"disk"`
	Ephemeral int    `json:"ephemeral"`
}

// FlavorTable maps flavor ids to their specs.
type FlavorTable map[string]FlavorSpec

// LoadFlavorTable reads a JSON list of flavors keyed by openstack_id.
func LoadFlavorTable(path string) (FlavorTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flavor table: %w", err)
	}
	var entries []struct {
		FlavorSpec
		OpenstackID string `json:"openstack_id"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("flavor table %s: %w", path, err)
	}

	table := make(FlavorTable, len(entries))
	for _, entry := range entries {
		table[entry.OpenstackID] = entry.FlavorSpec
	}
	return table, nil
}

// Get resolves a flavor id, failing on ids absent from the table.
func (t FlavorTable) Get(id string) (FlavorSpec, error) {
	spec, ok := t[id]
	if !ok {
		return FlavorSpec{}, fmt.Errorf("cannot map flavor id %s", id)
	}
	return spec, nil
}
