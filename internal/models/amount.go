package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Amount is a numeric field that the platform API sends either as a JSON
// number or as a numeric string. Malformed values decode as invalid instead of
// failing the surrounding record.
type Amount struct {
	Value float64
	Valid bool
}

// NewAmount builds a valid amount.
func NewAmount(v float64) Amount {
	return Amount{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*a = NewAmount(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		*a = NewAmount(n)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value)
}

// Float returns the value and whether it is usable.
func (a Amount) Float() (float64, bool) {
	return a.Value, a.Valid
}

// String formats the amount for exports.
func (a Amount) String() string {
	if !a.Valid {
		return ""
	}
	return strconv.FormatFloat(a.Value, 'f', -1, 64)
}
