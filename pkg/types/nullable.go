// Package types provides nullable JSON value types for handling optional payloads.
package types

// Nullable is implemented by types that can represent an absent value.
// It distinguishes a zero value from a value that was never set, which
// matters for JSON serialization where null carries meaning.
type Nullable interface {
	// IsNil returns true if the value is absent.
	IsNil() bool
}
