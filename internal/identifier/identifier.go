// Package identifier composes the join key that binds a commercial order
// line to its usage records.
package identifier

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SortComposed combines a single-valued linker field name and optional
// aggregator field names into a deterministic list: linker first, then the
// de-duplicated aggregators in ascending order. The same logical source
// may emit aggregator fields in varying order across runs; sorting keeps
// the composed key stable.
func SortComposed(linker string, aggregators []string) []string {
	if len(aggregators) == 0 {
		return []string{linker}
	}

	seen := make(map[string]struct{}, len(aggregators))
	unique := make([]string, 0, len(aggregators))
	for _, name := range aggregators {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}
	sort.Strings(unique)

	return append([]string{linker}, unique...)
}

// BuildComposed joins the values of the named fields, in the order given,
// with a comma. The result is exactly the string stored as the orderline
// identifier and looked up from incoming usage.
func BuildComposed(names []string, record map[string]any) (string, error) {
	values := make([]string, 0, len(names))
	for _, name := range names {
		value, ok := record[name]
		if !ok {
			return "", &MissingFieldError{Field: name}
		}
		values = append(values, stringify(value))
	}
	return strings.Join(values, ","), nil
}

// MissingFieldError reports a composition field absent from a record.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q in record", e.Field)
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode to float64; render integers without a dot.
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
