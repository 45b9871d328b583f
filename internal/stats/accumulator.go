package stats

import (
	"encoding/json"
	"math"
)

// Accumulator is a running (sum, count) pair. Count == 0 means no data.
type Accumulator struct {
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

func (a *Accumulator) Add(value float64) {
	a.Sum += value
	a.Count++
}

func (a Accumulator) Merge(other Accumulator) Accumulator {
	return Accumulator{Sum: a.Sum + other.Sum, Count: a.Count + other.Count}
}

// Average floors the mean. This is the only place a salary is floored.
func (a Accumulator) Average() Average {
	if a.Count == 0 {
		return Average{}
	}
	return Average{Value: int64(math.Floor(a.Sum / float64(a.Count))), Valid: true}
}

// Average is a floored mean salary. Valid is false when the bucket had no
// salary samples; it encodes as JSON null.
type Average struct {
	Value int64
	Valid bool
}

func (a Average) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value)
}

func (a *Average) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Average{}
		return nil
	}
	var value int64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*a = Average{Value: value, Valid: true}
	return nil
}
