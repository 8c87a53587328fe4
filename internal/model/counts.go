package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// VehicleCount is a single label/count pair of a Counts mapping.
type VehicleCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Counts maps vehicle category labels to counts while keeping the order in
// which the analysis service listed them. JSON encodes as an object.
type Counts []VehicleCount

// Len returns the number of categories.
func (c Counts) Len() int {
	return len(c)
}

// Get returns the count for label, or 0 when the label is absent.
func (c Counts) Get(label string) int {
	for _, vc := range c {
		if vc.Label == label {
			return vc.Count
		}
	}
	return 0
}

// Total sums all counts.
func (c Counts) Total() int {
	total := 0
	for _, vc := range c {
		total += vc.Count
	}
	return total
}

// Clone returns a copy that never aliases c. A nil receiver yields an empty,
// non-nil mapping.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	copy(out, c)
	return out
}

// Set updates label in place or appends it at the end.
func (c Counts) Set(label string, count int) Counts {
	for i := range c {
		if c[i].Label == label {
			c[i].Count = count
			return c
		}
	}
	return append(c, VehicleCount{Label: label, Count: count})
}

// MarshalJSON writes the mapping as a JSON object in insertion order.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, vc := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(vc.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", vc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of label -> count. Key order is kept;
// a repeated key keeps its first position and its last value. null decodes
// to an empty mapping.
func (c *Counts) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Counts{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("counts: expected object, got %v", tok)
	}

	out := Counts{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label := tok.(string)

		var num json.Number
		if err := dec.Decode(&num); err != nil {
			return fmt.Errorf("counts: value for %q: %w", label, err)
		}
		count, err := parseCount(num)
		if err != nil {
			return fmt.Errorf("counts: value for %q: %w", label, err)
		}
		out = out.Set(label, count)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// maxCount is 2^63, the first float not representable as an int64.
const maxCount = float64(1 << 63)

// parseCount accepts integers and integral floats such as 5.0.
func parseCount(num json.Number) (int, error) {
	if n, err := num.Int64(); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative count %d", n)
		}
		return int(n), nil
	}
	f, err := num.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integer count %v", f)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative count %v", f)
	}
	if f >= maxCount {
		return 0, fmt.Errorf("count %v out of range", f)
	}
	return int(f), nil
}
