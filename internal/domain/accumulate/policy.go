package accumulate

import "strings"

// DefaultSetSize caps the default per-field Set accumulator.
const DefaultSetSize = 100

// Policy maps a field name to the factory producing that field's
// accumulator. A nil factory drops the field from the aggregate entirely.
type Policy func(field string) Factory

// DefaultPolicy is the baseline field-to-accumulator selection: submission
// dates keep their minimum, update dates their maximum, and every other
// field folds into a bounded Set.
func DefaultPolicy(field string) Factory {
	switch {
	case strings.HasSuffix(field, "submission_date"):
		return func() Accumulator { return NewMin() }
	case strings.HasSuffix(field, "update_date"),
		strings.HasSuffix(field, "last_modified"):
		return func() Accumulator { return NewMax() }
	default:
		return func() Accumulator { return NewSet(DefaultSetSize) }
	}
}

// OverridePolicy layers per-field overrides on top of a base policy. An
// override present with a nil factory drops the field.
func OverridePolicy(base Policy, overrides map[string]Factory) Policy {
	return func(field string) Factory {
		if f, ok := overrides[field]; ok {
			return f
		}
		return base(field)
	}
}
