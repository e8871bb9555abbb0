// Package stats computes and applies per-column normalization statistics
// over streams of fixed-width feature rows.
//
// Statistics come from two passes over a restartable Source. Pass one
// accumulates count, sum, min and max into a Partial; pass two accumulates
// squared deviations from the pass-one mean into a Deviation. Both
// accumulators merge associatively so shards can be scanned in parallel.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Partial holds first-pass running totals for one or more shards.
type Partial struct {
	Count int64
	Sum   []float64
	Min   []float64
	Max   []float64
}

// NewPartial returns an empty accumulator for rows of the given width.
func NewPartial(width int) *Partial {
	p := &Partial{
		Sum: make([]float64, width),
		Min: make([]float64, width),
		Max: make([]float64, width),
	}
	floats.AddConst(math.Inf(1), p.Min)
	floats.AddConst(math.Inf(-1), p.Max)
	return p
}

// Width is the number of columns accumulated.
func (p *Partial) Width() int { return len(p.Sum) }

// Add folds one row into the totals.
func (p *Partial) Add(row []float64) error {
	if len(row) != p.Width() {
		return fmt.Errorf("row width %d, want %d", len(row), p.Width())
	}
	floats.Add(p.Sum, row)
	for i, v := range row {
		if v < p.Min[i] {
			p.Min[i] = v
		}
		if v > p.Max[i] {
			p.Max[i] = v
		}
	}
	p.Count++
	return nil
}

// Merge folds o into p. Merging in any grouping gives the same totals, up
// to floating point rounding of the sums.
func (p *Partial) Merge(o *Partial) error {
	if o.Width() != p.Width() {
		return fmt.Errorf("merge width %d into %d", o.Width(), p.Width())
	}
	floats.Add(p.Sum, o.Sum)
	for i := range p.Min {
		p.Min[i] = math.Min(p.Min[i], o.Min[i])
		p.Max[i] = math.Max(p.Max[i], o.Max[i])
	}
	p.Count += o.Count
	return nil
}

// Mean returns sum/count per column. It is only meaningful when Count > 0.
func (p *Partial) Mean() []float64 {
	mean := make([]float64, p.Width())
	for i, sum := range p.Sum {
		mean[i] = sum / float64(p.Count)
	}
	return mean
}
