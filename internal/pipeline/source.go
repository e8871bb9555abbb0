package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/monitoring"
	"github.com/banshee-data/qwop.data/internal/qwop"
	"github.com/banshee-data/qwop.data/internal/qwop/densedata"
	"github.com/banshee-data/qwop.data/internal/qwop/features"
	"github.com/banshee-data/qwop.data/internal/timeutil"
)

// FileSummary counts what one input file contributed.
type FileSummary struct {
	Path      string `json:"path"`
	Runs      int    `json:"runs"`
	RunsKept  int    `json:"runs_kept"` // runs with at least one kept timestep
	Timesteps int64  `json:"timesteps"`
	Kept      int64  `json:"kept"`
}

// FileSource serves the feature rows of a list of DataSet files, one shard
// per file. It implements stats.Source.
//
// Without caching every scan decodes the file again, so memory stays
// bounded by the files in flight. With caching the examples of each file
// are kept after the first scan.
type FileSource struct {
	fsys      fsutil.FileSystem
	paths     []string
	extractor features.Extractor
	clock     timeutil.Clock
	cache     bool

	mu        sync.Mutex
	cached    map[int][]features.RunExamples
	summaries []FileSummary
}

// NewFileSource creates a source over paths. Shard i is paths[i].
func NewFileSource(fsys fsutil.FileSystem, paths []string, extractor features.Extractor, cache bool) *FileSource {
	return &FileSource{
		fsys:      fsys,
		paths:     paths,
		extractor: extractor,
		clock:     timeutil.RealClock{},
		cache:     cache,
		cached:    make(map[int][]features.RunExamples),
		summaries: make([]FileSummary, len(paths)),
	}
}

// SetClock replaces the clock used to time decodes.
func (s *FileSource) SetClock(c timeutil.Clock) { s.clock = c }

// Paths returns the files in shard order.
func (s *FileSource) Paths() []string { return s.paths }

func (s *FileSource) Shards() int { return len(s.paths) }

// ScanShard calls fn with the feature vector of every kept timestep of file
// i, run by run in file order. The row slice is reused between calls.
func (s *FileSource) ScanShard(ctx context.Context, i int, fn func(row []float64) error) error {
	runs, err := s.Load(ctx, i)
	if err != nil {
		return err
	}
	row := make([]float64, qwop.FeatureWidth)
	for _, r := range runs {
		if err := ctx.Err(); err != nil {
			return err
		}
		for t := range r.Features {
			copy(row, r.Features[t][:])
			if err := fn(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load decodes file i and extracts its runs. A malformed run is reported
// as a *qwop.MalformedRunError carrying the file path and run index.
func (s *FileSource) Load(ctx context.Context, i int) ([]features.RunExamples, error) {
	if i < 0 || i >= len(s.paths) {
		return nil, fmt.Errorf("shard %d out of range [0, %d)", i, len(s.paths))
	}
	if s.cache {
		s.mu.Lock()
		runs, ok := s.cached[i]
		s.mu.Unlock()
		if ok {
			return runs, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.paths[i]
	start := s.clock.Now()
	decoded, err := densedata.DecodeFile(s.fsys, path)
	if err != nil {
		return nil, err
	}

	sum := FileSummary{Path: path, Runs: len(decoded)}
	runs := make([]features.RunExamples, len(decoded))
	for r, run := range decoded {
		ex, err := s.extractor.Extract(run)
		if err != nil {
			var mre *qwop.MalformedRunError
			if errors.As(err, &mre) {
				mre.Path = path
				mre.Run = r
			}
			return nil, err
		}
		runs[r] = ex
		sum.Timesteps += int64(ex.Total)
		sum.Kept += int64(ex.Len())
		if ex.Len() > 0 {
			sum.RunsKept++
		}
	}
	monitoring.Logf("[decode] %s: %d runs, %d/%d timesteps kept in %v",
		path, sum.Runs, sum.Kept, sum.Timesteps, s.clock.Since(start))

	s.mu.Lock()
	s.summaries[i] = sum
	if s.cache {
		s.cached[i] = runs
	}
	s.mu.Unlock()
	return runs, nil
}

// Summaries returns the per-file counts of the most recent scan of each
// file, in shard order. Files never scanned have only zero counts.
func (s *FileSource) Summaries() []FileSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FileSummary, len(s.summaries))
	copy(out, s.summaries)
	for i := range out {
		out[i].Path = s.paths[i]
	}
	return out
}
