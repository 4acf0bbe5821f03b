package types

import (
	"bytes"
	"encoding/json"
	"errors"
)

// NullableAny holds an arbitrary JSON value that may be absent.
// The zero value is absent. Values are stored as raw JSON so no
// information is lost between unmarshal and marshal.
type NullableAny struct {
	raw   json.RawMessage
	valid bool
}

// IsNil reports whether the value is absent.
func (na NullableAny) IsNil() bool {
	return !na.valid
}

// Set stores value, marshaling it to JSON unless it already is valid JSON.
func (na *NullableAny) Set(value any) error {
	switch v := value.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			na.raw, na.valid = nil, false
			return errors.New("value is not valid JSON")
		}
		na.raw = v
	case []byte:
		if json.Valid(v) {
			na.raw = v
			break
		}
		b, err := json.Marshal(value)
		if err != nil {
			na.raw, na.valid = nil, false
			return err
		}
		na.raw = b
	default:
		b, err := json.Marshal(value)
		if err != nil {
			na.raw, na.valid = nil, false
			return err
		}
		na.raw = b
	}
	na.valid = true
	return nil
}

// Get returns the decoded value, or nil if the value is absent or undecodable.
func (na NullableAny) Get() any {
	if !na.valid {
		return nil
	}
	var v any
	if err := json.Unmarshal(na.raw, &v); err != nil {
		return nil
	}
	return v
}

// GetAs decodes the value into v. Returns an error if the value is absent.
func (na NullableAny) GetAs(v any) error {
	if !na.valid {
		return errors.New("value is not set")
	}
	return json.Unmarshal(na.raw, v)
}

// Raw returns the stored JSON, or nil if the value is absent.
func (na NullableAny) Raw() json.RawMessage {
	if !na.valid {
		return nil
	}
	return na.raw
}

// Equals compares two values by their raw JSON bytes.
func (na NullableAny) Equals(other NullableAny) bool {
	if na.valid && other.valid {
		return bytes.Equal(na.raw, other.raw)
	}
	return na.valid == other.valid
}

// MarshalJSON implements json.Marshaler. Absent values marshal to null.
func (na NullableAny) MarshalJSON() ([]byte, error) {
	if na.valid {
		return na.raw, nil
	}
	return json.Marshal(nil)
}

// UnmarshalJSON implements json.Unmarshaler. JSON null yields an absent value.
func (na *NullableAny) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		na.raw, na.valid = nil, false
		return nil
	}
	if !json.Valid(data) {
		na.raw, na.valid = nil, false
		return errors.New("invalid JSON")
	}
	na.raw = data
	na.valid = true
	return nil
}

// NullableAnyFrom wraps value in a NullableAny.
func NullableAnyFrom(value any) (NullableAny, error) {
	var na NullableAny
	if err := na.Set(value); err != nil {
		return NullableAny{}, err
	}
	return na, nil
}

// NullableAnyFromRaw wraps raw JSON without validation. The caller
// guarantees raw is valid JSON.
func NullableAnyFromRaw(raw json.RawMessage) NullableAny {
	return NullableAny{raw: raw, valid: true}
}

// NilAny returns an absent value.
func NilAny() NullableAny {
	return NullableAny{}
}

var _ json.Marshaler = NullableAny{}
var _ json.Unmarshaler = &NullableAny{}
var _ Nullable = NullableAny{}
