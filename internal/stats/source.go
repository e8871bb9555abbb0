package stats

import "context"

// Source is a finite, restartable collection of rows split into shards.
// Scanning the same shard twice must yield the same rows in the same order.
type Source interface {
	// Shards is the number of independently scannable shards.
	Shards() int
	// ScanShard calls fn for every row of shard i in order. The row slice
	// may be reused after fn returns. A non-nil error from fn stops the scan
	// and is returned.
	ScanShard(ctx context.Context, i int, fn func(row []float64) error) error
}

// SliceSource serves rows held in memory.
type SliceSource struct {
	shards [][][]float64
}

// NewSliceSource splits rows into shards of at most shardSize rows. A
// shardSize below one puts every row in a single shard.
func NewSliceSource(rows [][]float64, shardSize int) *SliceSource {
	if shardSize < 1 {
		shardSize = len(rows)
	}
	s := &SliceSource{}
	for start := 0; start < len(rows); start += shardSize {
		end := min(start+shardSize, len(rows))
		s.shards = append(s.shards, rows[start:end])
	}
	return s
}

func (s *SliceSource) Shards() int { return len(s.shards) }

func (s *SliceSource) ScanShard(ctx context.Context, i int, fn func(row []float64) error) error {
	for _, row := range s.shards[i] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}
