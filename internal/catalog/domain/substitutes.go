package domain

import "fmt"

// RelationshipAccessory marks a substitute record that contributes a
// billing item to its parent product.
const RelationshipAccessory = "Accessory"

// Substitute is one product relationship row from the catalog feed.
type Substitute struct {
	ProductNo    string
	SubstituteNo string
	Relationship string
}

// SubstituteSet indexes substitute rows by parent product number.
type SubstituteSet struct {
	byProduct map[string][]Substitute
}

// ParseSubstitutes builds a SubstituteSet from raw feed rows. Rows
// missing any of the expected fields are rejected rather than skipped,
// a partial relationship table would silently drop billing items.
func ParseSubstitutes(records []map[string]any) (*SubstituteSet, error) {
	set := &SubstituteSet{byProduct: make(map[string][]Substitute)}
	for i, record := range records {
		sub := Substitute{}
		var ok bool
		if sub.ProductNo, ok = record["productnumber"].(string); !ok {
			return nil, fmt.Errorf("substitute record %d: missing productnumber", i)
		}
		if sub.SubstituteNo, ok = record["substitutedproductnumber"].(string); !ok {
			return nil, fmt.Errorf("substitute record %d: missing substitutedproductnumber", i)
		}
		if sub.Relationship, ok = record["salesrelationshiptype"].(string); !ok {
			return nil, fmt.Errorf("substitute record %d: missing salesrelationshiptype", i)
		}
		set.byProduct[sub.ProductNo] = append(set.byProduct[sub.ProductNo], sub)
	}
	return set, nil
}

// Accessories returns the product numbers of the accessory substitutes
// attached to productNo, in feed order.
func (s *SubstituteSet) Accessories(productNo string) []string {
	var out []string
	for _, sub := range s.byProduct[productNo] {
		if sub.Relationship == RelationshipAccessory {
			out = append(out, sub.SubstituteNo)
		}
	}
	return out
}
