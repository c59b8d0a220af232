package packer

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric input cell kept as read. Parsing is deferred to the
// normalizer so that unreadable values fall back to per-field defaults.
type Number string

// Num formats v as a Number.
func Num(v float64) Number {
	return Number(strconv.FormatFloat(v, 'f', -1, 64))
}

// Float parses n, returning def when n is blank, malformed, NaN or infinite.
func (n Number) Float(def float64) float64 {
	raw := strings.TrimSpace(string(n))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// UnmarshalJSON accepts a JSON number, a string or null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return err
		}
		*n = Number(num.String())
	}
	return nil
}

// MarshalJSON emits parseable values as JSON numbers and anything else as a string.
func (n Number) MarshalJSON() ([]byte, error) {
	raw := strings.TrimSpace(string(n))
	if v, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	}
	return json.Marshal(string(n))
}
