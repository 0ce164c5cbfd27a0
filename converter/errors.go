package converter

import "fmt"

// Kind identifies one of the ways a conversion can fail.
type Kind int

const (
	KindEmptyInput Kind = iota + 1
	KindInvalidNumber
	KindUnitSelection
	KindUnitNotFound
)

func (k Kind) String() string {
	switch k {
	case KindEmptyInput:
		return "EmptyInput"
	case KindInvalidNumber:
		return "InvalidNumber"
	case KindUnitSelection:
		return "UnitSelection"
	case KindUnitNotFound:
		return "UnitNotFound"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the only error type Convert returns. Category is set for
// KindUnitNotFound.
type Error struct {
	Kind     Kind
	Category string
}

//nolint:gochecknoglobals // sentinels for errors.Is
var (
	ErrEmptyInput    = &Error{Kind: KindEmptyInput}
	ErrInvalidNumber = &Error{Kind: KindInvalidNumber}
	ErrUnitSelection = &Error{Kind: KindUnitSelection}
	ErrUnitNotFound  = &Error{Kind: KindUnitNotFound}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindEmptyInput:
		return "input cannot be empty"
	case KindInvalidNumber:
		return "input is not a valid number"
	case KindUnitSelection:
		return "a from and a to unit must be selected"
	case KindUnitNotFound:
		return fmt.Sprintf("conversion unit not found in category %q", e.Category)
	default:
		return e.Kind.String()
	}
}

// Is matches on Kind so errors.Is(err, ErrUnitNotFound) holds for any category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func unitNotFound(category string) *Error {
	return &Error{Kind: KindUnitNotFound, Category: category}
}
