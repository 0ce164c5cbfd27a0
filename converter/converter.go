// Package converter turns a raw quantity in one unit into another unit of the
// same category.
//
// Convert is pure: it reads the table it is given, never retains it, and
// reports every failure as an *Error value.
package converter

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pitabwire/heritage/lang"
	"github.com/pitabwire/heritage/units"
)

// plainNumber admits decimal notation with an optional exponent only, so
// digit separators, hex floats and named values never reach ParseFloat.
var plainNumber = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

type factors struct {
	from units.UnitDetails
	to   units.UnitDetails
}

// Convert parses rawInput and converts it from fromUnit to toUnit inside
// category. The quantity is routed through the category's standard unit and
// returned unrounded.
//
// The language is accepted so callers pass the same arguments they format
// results with; it does not influence the numeric value.
func Convert(
	category, fromUnit, toUnit, rawInput string,
	_ lang.Language,
	data units.ConversionData,
) (float64, error) {
	value, err := parseInput(rawInput)
	if err != nil {
		return 0, err
	}

	if err = checkSelection(fromUnit, toUnit); err != nil {
		return 0, err
	}

	f, err := resolve(category, fromUnit, toUnit, data)
	if err != nil {
		return 0, err
	}

	return compute(value, f), nil
}

func parseInput(rawInput string) (float64, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return 0, ErrEmptyInput
	}

	if !plainNumber.MatchString(trimmed) {
		return 0, ErrInvalidNumber
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidNumber
	}
	return value, nil
}

func checkSelection(fromUnit, toUnit string) error {
	if strings.TrimSpace(fromUnit) == "" || strings.TrimSpace(toUnit) == "" {
		return ErrUnitSelection
	}
	return nil
}

func resolve(category, fromUnit, toUnit string, data units.ConversionData) (factors, error) {
	cat, ok := data[category]
	if !ok {
		return factors{}, unitNotFound(category)
	}

	from, _, fromOK := cat.Lookup(fromUnit)
	to, _, toOK := cat.Lookup(toUnit)
	if !fromOK || !toOK {
		return factors{}, unitNotFound(category)
	}

	return factors{from: from, to: to}, nil
}

// compute goes from -> standard -> to. Equal factors return value untouched
// since value*f/f is not exact in floating point.
func compute(value float64, f factors) float64 {
	if f.from.ToStandard == f.to.ToStandard {
		return value
	}
	inStandard := value * f.from.ToStandard
	return inStandard / f.to.ToStandard
}
