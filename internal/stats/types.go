package stats

import (
	"errors"
	"fmt"
	"math"
)

// NormalizationStats summarizes every row of a dataset, one entry per
// column. It is read-only once computed.
type NormalizationStats struct {
	Count int64
	Min   []float64
	Max   []float64
	Mean  []float64
	Range []float64 // Max - Min
	Stdev []float64 // sample standard deviation
}

// Width is the number of columns described.
func (s *NormalizationStats) Width() int { return len(s.Min) }

// Validate checks a complete set of statistics: a positive count plus
// everything ValidateColumns checks.
func (s *NormalizationStats) Validate() error {
	if s == nil {
		return errors.New("nil stats")
	}
	if s.Count <= 0 {
		return fmt.Errorf("count %d must be positive", s.Count)
	}
	return s.ValidateColumns()
}

// ValidateColumns checks that the vectors agree in width and hold sane
// values. Count is not inspected; text statistics may not record it.
func (s *NormalizationStats) ValidateColumns() error {
	if s == nil {
		return errors.New("nil stats")
	}
	if err := s.validateShape(); err != nil {
		return err
	}
	for i := range s.Min {
		for _, v := range [...]float64{s.Min[i], s.Max[i], s.Mean[i], s.Range[i], s.Stdev[i]} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("column %d: non-finite value %v", i, v)
			}
		}
		if s.Max[i] < s.Min[i] {
			return fmt.Errorf("column %d: max %g below min %g", i, s.Max[i], s.Min[i])
		}
		if s.Range[i] < 0 || s.Stdev[i] < 0 {
			return fmt.Errorf("column %d: negative range or stdev", i)
		}
	}
	return nil
}

func (s *NormalizationStats) validateShape() error {
	w := len(s.Min)
	if w == 0 {
		return errors.New("zero width")
	}
	for name, v := range map[string][]float64{"max": s.Max, "mean": s.Mean, "range": s.Range, "stdev": s.Stdev} {
		if len(v) != w {
			return fmt.Errorf("%s width %d, min width %d", name, len(v), w)
		}
	}
	return nil
}
