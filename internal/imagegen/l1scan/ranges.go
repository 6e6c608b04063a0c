package l1scan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Ranges holds one scan's range readings in meters. Drivers report
// "no return" as +Inf and failed readings as NaN, neither of which JSON
// can carry, so Ranges encodes them as "inf", "-inf" and null.
type Ranges []float64

// MarshalJSON implements json.Marshaler.
func (r Ranges) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.Grow(len(r) * 6)
	buf.WriteByte('[')
	for i, v := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		switch {
		case math.IsNaN(v):
			buf.WriteString("null")
		case math.IsInf(v, 1):
			buf.WriteString(`"inf"`)
		case math.IsInf(v, -1):
			buf.WriteString(`"-inf"`)
		default:
			buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Besides numbers it accepts
// null (NaN) and the strings "inf", "+inf", "-inf" and "nan" in any case.
func (r *Ranges) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ranges: %w", err)
	}
	if raw == nil {
		*r = nil
		return nil
	}
	out := make(Ranges, len(raw))
	for i, item := range raw {
		v, err := parseRange(item)
		if err != nil {
			return fmt.Errorf("ranges[%d]: %w", i, err)
		}
		out[i] = v
	}
	*r = out
	return nil
}

func parseRange(item json.RawMessage) (float64, error) {
	s := string(bytes.TrimSpace(item))
	if s == "null" {
		return math.NaN(), nil
	}
	if strings.HasPrefix(s, `"`) {
		var word string
		if err := json.Unmarshal(item, &word); err != nil {
			return 0, err
		}
		switch strings.ToLower(word) {
		case "inf", "+inf":
			return math.Inf(1), nil
		case "-inf":
			return math.Inf(-1), nil
		case "nan":
			return math.NaN(), nil
		default:
			return 0, fmt.Errorf("unknown range value %q", word)
		}
	}
	return strconv.ParseFloat(s, 64)
}
