package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ValueKind tags the serialization origin of a tally value.
type ValueKind uint8

const (
	Absent ValueKind = iota
	Number
	NumericString
)

var ErrInvalidValue = errors.New("invalid tally value")

// Value is a single tally as it arrived from upstream: a JSON number, a stringified
// number, or null.
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

func AbsentValue() Value { return Value{kind: Absent} }

func NumberValue(f float64) Value { return Value{kind: Number, num: f} }

// NumericStringValue fails when s does not parse as a float.
func NumericStringValue(s string) (Value, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q is not numeric", ErrInvalidValue, s)
	}
	return Value{kind: NumericString, num: f, str: s}, nil
}

func (v Value) Kind() ValueKind { return v.kind }

// Float returns the numeric content. NaN is returned as is; absent values report ok=false.
func (v Value) Float() (f float64, ok bool) {
	if v.kind == Absent {
		return 0, false
	}
	return v.num, true
}

func (v Value) String() string {
	switch v.kind {
	case Number:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case NumericString:
		return strconv.Quote(v.str)
	default:
		return "null"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Number:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	case NumericString:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = AbsentValue()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*v = AbsentValue()
			return nil
		}
		parsed, err := NumericStringValue(s)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidValue, string(data))
	}
	*v = NumberValue(f)
	return nil
}

// ProposalResult maps a vote option ("yes", "no", "abstain", ...) to its tally.
type ProposalResult map[string]Value

// Clone returns a copy that shares no state with r.
func (r ProposalResult) Clone() ProposalResult {
	if r == nil {
		return nil
	}
	out := make(ProposalResult, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
