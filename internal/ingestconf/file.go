package ingestconf

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Entry is one resource kind's block of the configuration file.
type Entry struct {
	ProductNo string `json:"product-no"`
	CRM       CRM    `json:"CRM"`
	Usage     Usage  `json:"USAGE"`
}

// CRM describes the contract feed and the field joining contracts to
// usage.
type CRM struct {
	URL        string `json:"url"`
	Identifier string `json:"identifier"`
}

// File is the full configuration file keyed by capitalized kind name.
type File map[string]Entry

// Load reads and decodes the configuration file at path.
func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: config file %s cannot be read: %v", ErrConfiguration, path, err)
	}
	var file File
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: config file %s is not valid JSON: %v", ErrConfiguration, path, err)
	}
	return file, nil
}

// Entry resolves the block for a kind, matching the capitalized kind
// naming of the file.
func (f File) Entry(kind string) (Entry, error) {
	entry, ok := f[Capitalize(kind)]
	if !ok {
		return Entry{}, fmt.Errorf("%w: no configuration found for %s", ErrConfiguration, Capitalize(kind))
	}
	return entry, nil
}

// Config validates a kind's USAGE block into an ingestion configuration.
func (f File) Config(kind string) (*Config, error) {
	entry, err := f.Entry(kind)
	if err != nil {
		return nil, err
	}
	return New(entry.ProductNo, entry.Usage)
}

// Capitalize normalizes a kind name the way the configuration file keys
// are written: first letter upper, rest lower.
func Capitalize(kind string) string {
	if kind == "" {
		return kind
	}
	return strings.ToUpper(kind[:1]) + strings.ToLower(kind[1:])
}
