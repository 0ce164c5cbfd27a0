// Package units holds the category/unit factor table the converter works on.
//
// A table is decoded once from the dataset resource and then shared read-only
// by the conversion engine and presentation code.
package units

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Category identifiers used by the dataset.
const (
	CategoryLength = "length"
	CategoryArea   = "area"
	CategoryMass   = "mass"
	CategoryVolume = "volume"
	CategoryTime   = "time"
)

// CategoryIDs returns the known categories in display order.
func CategoryIDs() []string {
	return []string{CategoryLength, CategoryArea, CategoryMass, CategoryVolume, CategoryTime}
}

// Group names which of the two unit sets a unit was found in.
type Group int

const (
	Historical Group = iota
	Modern
)

func (g Group) String() string {
	if g == Modern {
		return "modern"
	}
	return "historical"
}

// UnitDetails describes one unit; ToStandard multiplies a quantity in this
// unit into the category's standard unit.
type UnitDetails struct {
	Name       string  `json:"name"`
	ToStandard float64 `json:"toStandard"`
}

// UnitCategory is a measurement domain with its historical and modern units.
type UnitCategory struct {
	Name         string                 `json:"name"`
	StandardUnit string                 `json:"standardUnit"`
	Historical   map[string]UnitDetails `json:"historical"`
	Modern       map[string]UnitDetails `json:"modern"`

	historicalOrder []string
	modernOrder     []string
}

// ConversionData maps a category id to its category.
type ConversionData map[string]UnitCategory

// Lookup resolves key against the historical units first and the modern units
// second. A key present in both groups resolves to the historical entry.
func (c UnitCategory) Lookup(key string) (UnitDetails, Group, bool) {
	if u, ok := c.Historical[key]; ok {
		return u, Historical, true
	}
	if u, ok := c.Modern[key]; ok {
		return u, Modern, true
	}
	return UnitDetails{}, Historical, false
}

// HistoricalKeys returns the historical unit keys in document order.
func (c UnitCategory) HistoricalKeys() []string {
	return orderedKeys(c.Historical, c.historicalOrder)
}

// ModernKeys returns the modern unit keys in document order.
func (c UnitCategory) ModernKeys() []string {
	return orderedKeys(c.Modern, c.modernOrder)
}

// DefaultPair returns the units preselected for a category: the first
// historical and the first modern unit. Either may be empty.
func (c UnitCategory) DefaultPair() (string, string) {
	var from, to string
	if keys := c.HistoricalKeys(); len(keys) > 0 {
		from = keys[0]
	}
	if keys := c.ModernKeys(); len(keys) > 0 {
		to = keys[0]
	}
	return from, to
}

// UnmarshalJSON decodes a category and remembers the order unit keys appear in.
func (c *UnitCategory) UnmarshalJSON(data []byte) error {
	type plain UnitCategory
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var raw struct {
		Historical json.RawMessage `json:"historical"`
		Modern     json.RawMessage `json:"modern"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	historicalOrder, err := objectKeys(raw.Historical)
	if err != nil {
		return fmt.Errorf("historical units: %w", err)
	}
	modernOrder, err := objectKeys(raw.Modern)
	if err != nil {
		return fmt.Errorf("modern units: %w", err)
	}

	*c = UnitCategory(decoded)
	c.historicalOrder = historicalOrder
	c.modernOrder = modernOrder
	return nil
}

// MarshalJSON encodes a category keeping the unit keys in document order.
func (c UnitCategory) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	if err := writeJSON(&buf, c.Name); err != nil {
		return nil, err
	}
	buf.WriteString(`,"standardUnit":`)
	if err := writeJSON(&buf, c.StandardUnit); err != nil {
		return nil, err
	}
	buf.WriteString(`,"historical":`)
	if err := writeGroup(&buf, c.Historical, c.HistoricalKeys()); err != nil {
		return nil, err
	}
	buf.WriteString(`,"modern":`)
	if err := writeGroup(&buf, c.Modern, c.ModernKeys()); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeGroup(buf *bytes.Buffer, set map[string]UnitDetails, keys []string) error {
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeJSON(buf, set[key]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// Collision is a unit key defined in both groups of a category.
type Collision struct {
	Category string
	Unit     string
}

// Collisions lists every unit key that appears in both the historical and the
// modern group of the same category. Lookup resolves such keys to historical.
func (d ConversionData) Collisions() []Collision {
	var out []Collision
	for _, id := range sortedKeys(d) {
		cat := d[id]
		for _, key := range sortedKeys(cat.Historical) {
			if _, ok := cat.Modern[key]; ok {
				out = append(out, Collision{Category: id, Unit: key})
			}
		}
	}
	return out
}

// Validate checks the invariants a well formed table satisfies: a named
// standard unit per category and finite, positive factors.
func (d ConversionData) Validate() error {
	var errs []error
	for _, id := range sortedKeys(d) {
		cat := d[id]
		if cat.StandardUnit == "" {
			errs = append(errs, fmt.Errorf("category %q: standard unit is not set", id))
		}
		errs = append(errs, validateGroup(id, Historical, cat.Historical)...)
		errs = append(errs, validateGroup(id, Modern, cat.Modern)...)
	}
	return errors.Join(errs...)
}

func validateGroup(category string, group Group, set map[string]UnitDetails) []error {
	var errs []error
	for _, key := range sortedKeys(set) {
		f := set[key].ToStandard
		if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			errs = append(errs, fmt.Errorf("category %q: %s unit %q has invalid factor %v", category, group, key, f))
		}
	}
	return errs
}

func orderedKeys(set map[string]UnitDetails, order []string) []string {
	if len(order) == len(set) {
		out := make([]string, len(order))
		copy(out, order)
		return out
	}
	return sortedKeys(set)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// objectKeys returns the member names of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected a JSON object")
	}

	var keys []string
	seen := map[string]struct{}{}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("expected an object key")
		}
		var skip json.RawMessage
		if err = dec.Decode(&skip); err != nil {
			return nil, err
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}
