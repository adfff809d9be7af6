// Package ptr has small helpers for the optional fields of catalogue payloads.
package ptr

// To creates a pointer to the given value.
func To[T any](v T) *T {
	return &v
}

// NonEmpty returns a pointer to s, or nil when s is empty. Payload builders
// use it so an unknown string never overwrites a stored value with "".
func NonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to value or the zero value for nil.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
