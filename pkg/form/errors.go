package form

import (
	"errors"
	"strings"
)

var (
	// ErrMissingField is matched by every *ValidationError.
	ErrMissingField = errors.New("form: missing required field")
	// ErrUnknownOption reports a value the reference metadata does not offer.
	ErrUnknownOption = errors.New("form: option not offered")
)

// Field names reported by ValidationError, using the wire spelling.
const (
	FieldScale           = "scale"
	FieldLevel           = "level"
	FieldOrganization    = "organization"
	FieldGrowthIntensity = "growth_intensity"
	FieldGoalStyle       = "goal_style"
)

// ValidationError lists every mandatory field left unset.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "form: missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrMissingField
}
