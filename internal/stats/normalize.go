package stats

import "fmt"

// Rescale maps x into [0,1] column by column as (x-min)/range. Columns with
// no range map to 0. x must have s.Width() columns. Rescale never mutates
// its arguments.
func Rescale(s *NormalizationStats, x []float64) []float64 {
	mustWidth(s, x)
	out := make([]float64, len(x))
	for i, v := range x {
		if s.Range[i] > 0 {
			out[i] = (v - s.Min[i]) / s.Range[i]
		}
	}
	return out
}

// Standardize maps x to (x-mean)/stdev column by column. Columns with no
// spread map to 0.
func Standardize(s *NormalizationStats, x []float64) []float64 {
	mustWidth(s, x)
	out := make([]float64, len(x))
	for i, v := range x {
		if s.Stdev[i] > 0 {
			out[i] = (v - s.Mean[i]) / s.Stdev[i]
		}
	}
	return out
}

func mustWidth(s *NormalizationStats, x []float64) {
	if len(x) != s.Width() {
		panic(fmt.Sprintf("stats: row width %d, stats width %d", len(x), s.Width()))
	}
}

// Method selects a normalization.
type Method string

const (
	MethodRange Method = "range"
	MethodStdev Method = "stdev"
)

// ParseMethod validates a method name. The empty string selects
// MethodRange.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodRange:
		return MethodRange, nil
	case MethodStdev:
		return MethodStdev, nil
	}
	return "", fmt.Errorf("unknown normalization method %q (want %q or %q)", s, MethodRange, MethodStdev)
}

// Normalizer applies one method with fixed statistics. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	Method Method
	Stats  *NormalizationStats
}

// NewNormalizer validates the columns of s and the method. The count is
// not needed to normalize and may be zero.
func NewNormalizer(s *NormalizationStats, method Method) (*Normalizer, error) {
	if err := s.ValidateColumns(); err != nil {
		return nil, fmt.Errorf("invalid stats: %w", err)
	}
	m, err := ParseMethod(string(method))
	if err != nil {
		return nil, err
	}
	return &Normalizer{Method: m, Stats: s}, nil
}

// Apply normalizes x.
func (n *Normalizer) Apply(x []float64) ([]float64, error) {
	if len(x) != n.Stats.Width() {
		return nil, fmt.Errorf("row width %d, stats width %d", len(x), n.Stats.Width())
	}
	if n.Method == MethodStdev {
		return Standardize(n.Stats, x), nil
	}
	return Rescale(n.Stats, x), nil
}

// Invert maps a normalized row back to feature units. Columns that had no
// range (or spread) come back as the column min (or mean).
func (n *Normalizer) Invert(y []float64) ([]float64, error) {
	if len(y) != n.Stats.Width() {
		return nil, fmt.Errorf("row width %d, stats width %d", len(y), n.Stats.Width())
	}
	s := n.Stats
	out := make([]float64, len(y))
	for i, v := range y {
		if n.Method == MethodStdev {
			out[i] = v*s.Stdev[i] + s.Mean[i]
		} else {
			out[i] = v*s.Range[i] + s.Min[i]
		}
	}
	return out, nil
}
