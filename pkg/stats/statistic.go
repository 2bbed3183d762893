package stats

import (
	"encoding/json"
	"math"
)

// Factor used by Gain when none is given.
const DefaultGainFactor = 0.99

// Running aggregate of the values recorded under one key-set.
type Statistic struct {
	Keys Keys

	Count  float64
	Sum    float64
	SqrSum float64

	// Number of values recorded, not affected by Gain.
	Samples int

	Min     float64
	Max     float64
	MinData any
	MaxData any
}

func NewStatistic(keys Keys) *Statistic {
	return &Statistic{
		Keys: keys,
		Min:  math.Inf(1),
		Max:  math.Inf(-1),
	}
}

// Records a value. data is remembered if the value is a new minimum or maximum.
func (s *Statistic) Add(value float64, data any) {
	s.Count += 1
	s.Sum += value
	s.SqrSum += value * value
	s.Samples += 1

	if value < s.Min {
		s.Min = value
		s.MinData = data
	}
	if value > s.Max {
		s.Max = value
		s.MaxData = data
	}
}

// Fades the previous values by factor before recording value.
// The average approximates an exponential moving average.
func (s *Statistic) Gain(value, factor float64, data any) {
	if math.IsNaN(factor) || factor <= 0 {
		factor = DefaultGainFactor
	}
	s.Count *= factor
	s.Sum *= factor
	s.SqrSum *= factor
	s.Add(value, data)
}

// Merges the values of other into s.
func (s *Statistic) AddStatistic(other *Statistic) {
	s.Count += other.Count
	s.Sum += other.Sum
	s.SqrSum += other.SqrSum
	s.Samples += other.Samples

	if other.Min < s.Min {
		s.Min = other.Min
		s.MinData = other.MinData
	}
	if other.Max > s.Max {
		s.Max = other.Max
		s.MaxData = other.MaxData
	}
}

func (s *Statistic) Average() float64 {
	if s.Count <= 0 {
		return 0
	}
	return s.Sum / s.Count
}

func (s *Statistic) Variance() float64 {
	if s.Count <= 0 {
		return 0
	}
	center := s.Average()
	variance := center*center + (s.SqrSum-2*center*s.Sum)/s.Count
	return math.Max(0, variance)
}

func (s *Statistic) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

func (s *Statistic) Clone() *Statistic {
	c := *s
	c.Keys = s.Keys.With(nil)
	return &c
}

type statisticJSON struct {
	Keys    Keys     `json:"keys"`
	Count   float64  `json:"count"`
	Samples int      `json:"samples"`
	Sum     float64  `json:"sum"`
	SqrSum  float64  `json:"sqrSum"`
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
	Average float64  `json:"average"`
	StdDev  float64  `json:"stddev"`
	MinData any      `json:"minData,omitempty"`
	MaxData any      `json:"maxData,omitempty"`
}

func finite(value float64) *float64 {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return nil
	}
	return &value
}

func (s *Statistic) MarshalJSON() ([]byte, error) {
	return json.Marshal(statisticJSON{
		Keys:    s.Keys,
		Count:   s.Count,
		Samples: s.Samples,
		Sum:     s.Sum,
		SqrSum:  s.SqrSum,
		Min:     finite(s.Min),
		Max:     finite(s.Max),
		Average: s.Average(),
		StdDev:  s.StdDev(),
		MinData: s.MinData,
		MaxData: s.MaxData,
	})
}

func (s *Statistic) UnmarshalJSON(data []byte) error {
	var decoded statisticJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*s = *NewStatistic(decoded.Keys)
	s.Count = decoded.Count
	s.Samples = decoded.Samples
	s.Sum = decoded.Sum
	s.SqrSum = decoded.SqrSum
	s.MinData = decoded.MinData
	s.MaxData = decoded.MaxData
	if decoded.Min != nil {
		s.Min = *decoded.Min
	}
	if decoded.Max != nil {
		s.Max = *decoded.Max
	}
	return nil
}
