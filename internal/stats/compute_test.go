package stats

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/qwop.data/internal/qwop"
)

func randomRows(seed int64, n, width int) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, width)
		for j := range rows[i] {
			rows[i][j] = float64(j)*10 + rng.NormFloat64()*float64(j+1)
		}
	}
	return rows
}

func column(rows [][]float64, j int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r[j]
	}
	return out
}

func TestCompute_ThreeRowExample(t *testing.T) {
	src := NewSliceSource([][]float64{{1}, {2}, {3}}, 0)
	s, err := Compute(context.Background(), src, 1, ComputeOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, []float64{1}, s.Min)
	assert.Equal(t, []float64{3}, s.Max)
	assert.Equal(t, []float64{2}, s.Mean)
	assert.Equal(t, []float64{2}, s.Range)
	assert.InDelta(t, 1.0, s.Stdev[0], 1e-12)
	require.NoError(t, s.Validate())
}

func TestCompute_MatchesGonumStat(t *testing.T) {
	rows := randomRows(7, 2000, qwop.FeatureWidth)

	for _, tc := range []struct {
		name      string
		shardSize int
		workers   int
	}{
		{"single shard", 0, 1},
		{"many shards serial", 37, 1},
		{"many shards parallel", 37, 8},
		{"one row per shard", 1, 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Compute(context.Background(), NewSliceSource(rows, tc.shardSize), qwop.FeatureWidth,
				ComputeOptions{Workers: tc.workers})
			require.NoError(t, err)
			require.Equal(t, int64(len(rows)), s.Count)

			for j := 0; j < qwop.FeatureWidth; j++ {
				col := column(rows, j)
				mean, std := stat.MeanStdDev(col, nil)
				assert.InDelta(t, mean, s.Mean[j], 1e-9, "mean col %d", j)
				assert.InDelta(t, std, s.Stdev[j], 1e-9, "stdev col %d", j)

				lo, hi := math.Inf(1), math.Inf(-1)
				for _, v := range col {
					lo, hi = math.Min(lo, v), math.Max(hi, v)
				}
				assert.Equal(t, lo, s.Min[j])
				assert.Equal(t, hi, s.Max[j])
				assert.Equal(t, hi-lo, s.Range[j])
			}
		})
	}
}

func TestCompute_ShardingDoesNotChangeResult(t *testing.T) {
	rows := randomRows(3, 500, 6)
	whole, err := Compute(context.Background(), NewSliceSource(rows, 0), 6, ComputeOptions{})
	require.NoError(t, err)
	sharded, err := Compute(context.Background(), NewSliceSource(rows, 13), 6, ComputeOptions{Workers: 5})
	require.NoError(t, err)

	opt := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(whole, sharded, opt); diff != "" {
		t.Errorf("sharded stats differ (-whole +sharded):\n%s", diff)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	rows := randomRows(5, 1000, 4)
	first, err := Compute(context.Background(), NewSliceSource(rows, 7), 4, ComputeOptions{Workers: 8})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Compute(context.Background(), NewSliceSource(rows, 7), 4, ComputeOptions{Workers: 8})
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestCompute_Empty(t *testing.T) {
	for name, src := range map[string]Source{
		"no shards":    NewSliceSource(nil, 10),
		"empty shards": &SliceSource{shards: [][][]float64{{}, {}}},
	} {
		t.Run(name, func(t *testing.T) {
			s, err := Compute(context.Background(), src, 3, ComputeOptions{})
			assert.Nil(t, s)
			assert.ErrorIs(t, err, qwop.ErrEmptyDataset)
		})
	}
}

func TestCompute_SingleRowHasZeroStdev(t *testing.T) {
	s, err := Compute(context.Background(), NewSliceSource([][]float64{{4, -2}}, 0), 2, ComputeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, s.Stdev)
	assert.Equal(t, []float64{0, 0}, s.Range)
	assert.Equal(t, []float64{4, -2}, s.Mean)
}

func TestCompute_WidthMismatch(t *testing.T) {
	src := NewSliceSource([][]float64{{1, 2}, {1, 2, 3}}, 0)
	_, err := Compute(context.Background(), src, 2, ComputeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row width 3")

	_, err = Compute(context.Background(), src, 0, ComputeOptions{})
	assert.Error(t, err)
}

type failingSource struct {
	*SliceSource
	failShard int
	err       error
}

func (f failingSource) ScanShard(ctx context.Context, i int, fn func([]float64) error) error {
	if i == f.failShard {
		return f.err
	}
	return f.SliceSource.ScanShard(ctx, i, fn)
}

func TestCompute_ShardErrorAborts(t *testing.T) {
	boom := errors.New("disk on fire")
	src := failingSource{SliceSource: NewSliceSource(randomRows(1, 100, 2), 10), failShard: 4, err: boom}
	s, err := Compute(context.Background(), src, 2, ComputeOptions{Workers: 3})
	assert.Nil(t, s)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pass one")
	assert.Contains(t, err.Error(), "shard 4")
}

// shrinkingSource drops its last row after the first full scan.
type shrinkingSource struct {
	mu    sync.Mutex
	rows  [][]float64
	scans int
}

func (s *shrinkingSource) Shards() int { return 1 }

func (s *shrinkingSource) ScanShard(ctx context.Context, i int, fn func([]float64) error) error {
	s.mu.Lock()
	rows := s.rows
	if s.scans > 0 {
		rows = rows[:len(rows)-1]
	}
	s.scans++
	s.mu.Unlock()
	for _, r := range rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func TestCompute_SourceChangedBetweenPasses(t *testing.T) {
	src := &shrinkingSource{rows: [][]float64{{1}, {2}, {3}}}
	_, err := Compute(context.Background(), src, 1, ComputeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed between passes")
}

func TestCompute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compute(ctx, NewSliceSource(randomRows(1, 10, 2), 0), 2, ComputeOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompute_Progress(t *testing.T) {
	var mu sync.Mutex
	rowsByPass := map[int]int64{}
	calls := 0
	opts := ComputeOptions{Workers: 4, Progress: func(pass, shard int, rows int64) {
		mu.Lock()
		defer mu.Unlock()
		rowsByPass[pass] += rows
		calls++
	}}
	_, err := Compute(context.Background(), NewSliceSource(randomRows(2, 95, 3), 10), 3, opts)
	require.NoError(t, err)
	assert.Equal(t, 20, calls)
	assert.Equal(t, map[int]int64{1: 95, 2: 95}, rowsByPass)
}

func TestPartial_MergeAssociative(t *testing.T) {
	rows := randomRows(11, 90, 3)
	part := func(rs [][]float64) *Partial {
		p := NewPartial(3)
		for _, r := range rs {
			require.NoError(t, p.Add(r))
		}
		return p
	}

	// (a+b)+c
	left := part(rows[:30])
	require.NoError(t, left.Merge(part(rows[30:60])))
	require.NoError(t, left.Merge(part(rows[60:])))

	// a+(b+c)
	bc := part(rows[30:60])
	require.NoError(t, bc.Merge(part(rows[60:])))
	right := part(rows[:30])
	require.NoError(t, right.Merge(bc))

	// c+a+b
	swapped := part(rows[60:])
	require.NoError(t, swapped.Merge(part(rows[:30])))
	require.NoError(t, swapped.Merge(part(rows[30:60])))

	opt := cmpopts.EquateApprox(0, 1e-12)
	assert.Empty(t, cmp.Diff(left, right, opt))
	assert.Empty(t, cmp.Diff(left, swapped, opt))
	assert.Equal(t, int64(90), left.Count)

	// An empty partial is the identity.
	require.NoError(t, left.Merge(NewPartial(3)))
	assert.Empty(t, cmp.Diff(right, left, opt))

	assert.Error(t, left.Merge(NewPartial(4)))
}

func TestDeviation_Merge(t *testing.T) {
	mean := []float64{1, 2}
	a, b := NewDeviation(mean), NewDeviation(mean)
	require.NoError(t, a.Add([]float64{0, 2}))
	require.NoError(t, b.Add([]float64{3, 5}))
	require.NoError(t, a.Merge(b))
	assert.Equal(t, []float64{1 + 4, 0 + 9}, a.SumSq)
	assert.Equal(t, int64(2), a.Count)
	assert.Error(t, a.Add([]float64{1}))
	assert.Error(t, a.Merge(NewDeviation([]float64{1})))
}
