package stats

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Deviation holds second-pass sums of squared deviations from a fixed mean.
type Deviation struct {
	Count int64
	SumSq []float64

	mean    []float64
	scratch []float64
}

// NewDeviation returns an empty second-pass accumulator around mean. The
// mean slice is retained and must not be modified.
func NewDeviation(mean []float64) *Deviation {
	return &Deviation{
		SumSq:   make([]float64, len(mean)),
		mean:    mean,
		scratch: make([]float64, len(mean)),
	}
}

// Width is the number of columns accumulated.
func (d *Deviation) Width() int { return len(d.SumSq) }

// Add folds (row-mean)^2 into the totals.
func (d *Deviation) Add(row []float64) error {
	if len(row) != d.Width() {
		return fmt.Errorf("row width %d, want %d", len(row), d.Width())
	}
	floats.SubTo(d.scratch, row, d.mean)
	floats.Mul(d.scratch, d.scratch)
	floats.Add(d.SumSq, d.scratch)
	d.Count++
	return nil
}

// Merge folds o into d. Both must have been built around the same mean.
func (d *Deviation) Merge(o *Deviation) error {
	if o.Width() != d.Width() {
		return fmt.Errorf("merge width %d into %d", o.Width(), d.Width())
	}
	floats.Add(d.SumSq, o.SumSq)
	d.Count += o.Count
	return nil
}
