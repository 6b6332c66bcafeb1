package slurm

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ScalarOrTagged holds a numeric field that Slurm reports either as a bare
// scalar or, in newer JSON output, as {"number": N, "set": bool, "infinite": bool}.
// Non-numeric strings are kept in Text.
type ScalarOrTagged struct {
	Number   int64
	Set      bool
	Infinite bool
	Text     string
}

// ScalarOf builds a set scalar value.
func ScalarOf(n int64) ScalarOrTagged {
	return ScalarOrTagged{Number: n, Set: true}
}

// ParseScalarOrTagged normalizes whatever a JSON decoder produced for the field.
func ParseScalarOrTagged(v interface{}) ScalarOrTagged {
	switch t := v.(type) {
	case nil:
		return ScalarOrTagged{}
	case ScalarOrTagged:
		return t
	case float64:
		return ScalarOf(int64(t))
	case float32:
		return ScalarOf(int64(t))
	case int:
		return ScalarOf(int64(t))
	case int64:
		return ScalarOf(t)
	case int32:
		return ScalarOf(int64(t))
	case uint32:
		return ScalarOf(int64(t))
	case uint64:
		if t > math.MaxInt64 {
			return ScalarOrTagged{Infinite: true, Set: true}
		}
		return ScalarOf(int64(t))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return ScalarOf(n)
		}
		if f, err := t.Float64(); err == nil {
			return ScalarOf(int64(f))
		}
		return ScalarOrTagged{Text: t.String()}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return ScalarOrTagged{}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return ScalarOf(n)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return ScalarOf(int64(f))
		}
		return ScalarOrTagged{Text: s}
	case map[string]interface{}:
		out := ParseScalarOrTagged(t["number"])
		out.Text = ""
		out.Set = true
		if set, ok := t["set"].(bool); ok {
			out.Set = set
		}
		if inf, ok := t["infinite"].(bool); ok {
			out.Infinite = inf
		}
		return out
	}
	return ScalarOrTagged{}
}

// Int64 returns the plain integer. Unset, infinite and non-numeric values are 0.
func (s ScalarOrTagged) Int64() int64 {
	if !s.Set || s.Infinite {
		return 0
	}
	return s.Number
}

// IsZero reports whether the field carried no usable value at all.
func (s ScalarOrTagged) IsZero() bool {
	return !s.Set && s.Text == ""
}

// String renders the value for display: the raw text when it was not a
// number, "" when unset.
func (s ScalarOrTagged) String() string {
	if s.Text != "" {
		return s.Text
	}
	if !s.Set {
		return ""
	}
	if s.Infinite {
		return "UNLIMITED"
	}
	return strconv.FormatInt(s.Number, 10)
}

// UnmarshalJSON accepts either shape.
func (s *ScalarOrTagged) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseScalarOrTagged(raw)
	return nil
}
