package stats

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/qwop.data/internal/qwop"
)

// ComputeOptions tunes Compute.
type ComputeOptions struct {
	// Workers bounds the number of shards scanned concurrently. Zero means
	// runtime.GOMAXPROCS(0).
	Workers int
	// Progress, if set, is called after each shard of each pass completes.
	// It may be called from several goroutines at once.
	Progress func(pass, shard int, rows int64)
}

func (o ComputeOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Compute scans src twice and returns its normalization statistics.
//
// Pass one collects count, sum, min and max; pass two collects squared
// deviations from the pass-one mean. Shards of a pass run concurrently and
// their results are folded in shard order, so the output does not depend
// on scheduling. The first shard error cancels the rest and is returned.
//
// A source with no rows yields qwop.ErrEmptyDataset.
func Compute(ctx context.Context, src Source, width int, opts ComputeOptions) (*NormalizationStats, error) {
	if width <= 0 {
		return nil, fmt.Errorf("width %d must be positive", width)
	}
	n := src.Shards()

	partials := make([]*Partial, n)
	err := scanAll(ctx, src, opts, 1, func(i int) (func([]float64) error, func() int64) {
		p := NewPartial(width)
		partials[i] = p
		return p.Add, func() int64 { return p.Count }
	})
	if err != nil {
		return nil, fmt.Errorf("pass one: %w", err)
	}

	total := NewPartial(width)
	for _, p := range partials {
		if err := total.Merge(p); err != nil {
			return nil, err
		}
	}
	if total.Count == 0 {
		return nil, qwop.ErrEmptyDataset
	}
	mean := total.Mean()

	devs := make([]*Deviation, n)
	err = scanAll(ctx, src, opts, 2, func(i int) (func([]float64) error, func() int64) {
		d := NewDeviation(mean)
		devs[i] = d
		return d.Add, func() int64 { return d.Count }
	})
	if err != nil {
		return nil, fmt.Errorf("pass two: %w", err)
	}

	dev := NewDeviation(mean)
	for _, d := range devs {
		if err := dev.Merge(d); err != nil {
			return nil, err
		}
	}
	if dev.Count != total.Count {
		return nil, fmt.Errorf("source changed between passes: %d rows then %d", total.Count, dev.Count)
	}

	return finish(total, mean, dev), nil
}

// scanAll scans every shard of src, bounded by opts.Workers. newShard
// returns the row sink for shard i and a row counter for progress reports.
func scanAll(ctx context.Context, src Source, opts ComputeOptions, pass int,
	newShard func(i int) (add func([]float64) error, rows func() int64)) error {

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i := 0; i < src.Shards(); i++ {
		add, rows := newShard(i)
		g.Go(func() error {
			if err := src.ScanShard(gctx, i, add); err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}
			if opts.Progress != nil {
				opts.Progress(pass, i, rows())
			}
			return nil
		})
	}
	return g.Wait()
}

// finish derives the published statistics. A single row has no spread, so
// its standard deviation is reported as zero.
func finish(p *Partial, mean []float64, d *Deviation) *NormalizationStats {
	w := p.Width()
	s := &NormalizationStats{
		Count: p.Count,
		Min:   append([]float64(nil), p.Min...),
		Max:   append([]float64(nil), p.Max...),
		Mean:  append([]float64(nil), mean...),
		Range: make([]float64, w),
		Stdev: make([]float64, w),
	}
	floats.SubTo(s.Range, s.Max, s.Min)
	if p.Count > 1 {
		for i, ss := range d.SumSq {
			s.Stdev[i] = math.Sqrt(ss / float64(p.Count-1))
		}
	}
	return s
}
