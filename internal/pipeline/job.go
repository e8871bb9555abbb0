package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/qwop.data/internal/config"
	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/monitoring"
	"github.com/banshee-data/qwop.data/internal/qwop"
	"github.com/banshee-data/qwop.data/internal/qwop/features"
	"github.com/banshee-data/qwop.data/internal/stats"
	"github.com/banshee-data/qwop.data/internal/tfrecord"
	"github.com/banshee-data/qwop.data/internal/timeutil"
)

// Job is one configured pipeline run over a set of input directories.
type Job struct {
	FS           fsutil.FileSystem
	InputDirs    []string
	Extensions   []string
	Extractor    features.Extractor
	Workers      int // zero means runtime.GOMAXPROCS(0)
	CacheDecoded bool
	Clock        timeutil.Clock
}

// NewJob builds a Job from cfg. Unset fields take their defaults.
func NewJob(fsys fsutil.FileSystem, cfg *config.PipelineConfig) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	layout, err := features.ParseActionLayout(cfg.GetActionLayout())
	if err != nil {
		return nil, err
	}
	return &Job{
		FS:         fsys,
		InputDirs:  cfg.GetInputDirs(),
		Extensions: cfg.GetFileExtensions(),
		Extractor: features.Extractor{
			DiscardEndCount: cfg.GetDiscardEndCount(),
			Layout:          layout,
		},
		Workers:      cfg.GetWorkers(),
		CacheDecoded: cfg.GetCacheDecoded(),
		Clock:        timeutil.RealClock{},
	}, nil
}

func (j *Job) workers() int {
	if j.Workers > 0 {
		return j.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (j *Job) clock() timeutil.Clock {
	if j.Clock == nil {
		return timeutil.RealClock{}
	}
	return j.Clock
}

func (j *Job) source() (*FileSource, error) {
	if len(j.InputDirs) == 0 {
		return nil, fmt.Errorf("no input directories configured")
	}
	paths, err := DiscoverFiles(j.FS, j.InputDirs, j.Extensions)
	if err != nil {
		return nil, err
	}
	src := NewFileSource(j.FS, paths, j.Extractor, j.CacheDecoded)
	src.SetClock(j.clock())
	return src, nil
}

// StatsResult is the outcome of ComputeStats.
type StatsResult struct {
	Stats   *stats.NormalizationStats
	Files   []FileSummary
	Elapsed time.Duration
}

// ComputeStats discovers the input files and computes their normalization
// statistics.
func (j *Job) ComputeStats(ctx context.Context) (*StatsResult, error) {
	src, err := j.source()
	if err != nil {
		return nil, err
	}
	paths := src.Paths()
	start := j.clock().Now()
	monitoring.Logf("[stats] %d files, %d workers, discard_end_count=%d",
		len(paths), j.workers(), j.Extractor.DiscardEndCount)

	passes := [2]*monitoring.Progress{
		monitoring.NewProgress(j.clock(), "stats pass 1", len(paths)),
		monitoring.NewProgress(j.clock(), "stats pass 2", len(paths)),
	}
	s, err := stats.Compute(ctx, src, qwop.FeatureWidth, stats.ComputeOptions{
		Workers: j.workers(),
		Progress: func(pass, shard int, rows int64) {
			passes[pass-1].Done(paths[shard], fmt.Sprintf("rows=%d", rows))
		},
	})
	if err != nil {
		return nil, err
	}
	for _, p := range passes {
		p.Finish()
	}
	return &StatsResult{
		Stats:   s,
		Files:   src.Summaries(),
		Elapsed: j.clock().Since(start),
	}, nil
}

// MaterializeResult is the outcome of Materialize.
type MaterializeResult struct {
	Files   []FileSummary
	Records int64
	Elapsed time.Duration
}

// Materialize writes one Example record per kept timestep to w. When norm
// is non-nil the state features are normalized with it first. Files are
// decoded concurrently but their records reach w in file order, run by run
// and timestep by timestep. w is not closed.
func (j *Job) Materialize(ctx context.Context, w *tfrecord.Writer, norm *stats.Normalizer) (*MaterializeResult, error) {
	src, err := j.source()
	if err != nil {
		return nil, err
	}
	paths := src.Paths()
	start := j.clock().Now()
	before := w.Count()
	progress := monitoring.NewProgress(j.clock(), "records", len(paths))

	ready := make([]chan [][]byte, len(paths))
	for i := range ready {
		ready[i] = make(chan [][]byte, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workers, wctx := errgroup.WithContext(gctx)
		workers.SetLimit(j.workers())
		for i := range paths {
			workers.Go(func() error {
				records, err := encodeFile(wctx, src, i, norm)
				if err != nil {
					return fmt.Errorf("shard %d: %w", i, err)
				}
				ready[i] <- records
				return nil
			})
		}
		return workers.Wait()
	})
	g.Go(func() error {
		for i := range paths {
			var records [][]byte
			select {
			case records = <-ready[i]:
			case <-gctx.Done():
				return gctx.Err()
			}
			for _, rec := range records {
				if err := w.Write(rec); err != nil {
					return fmt.Errorf("write records of %s: %w", paths[i], err)
				}
			}
			progress.Done(paths[i], fmt.Sprintf("records=%d", len(records)))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	progress.Finish()

	return &MaterializeResult{
		Files:   src.Summaries(),
		Records: w.Count() - before,
		Elapsed: j.clock().Since(start),
	}, nil
}

// encodeFile builds the serialized Examples of file i.
func encodeFile(ctx context.Context, src *FileSource, i int, norm *stats.Normalizer) ([][]byte, error) {
	runs, err := src.Load(ctx, i)
	if err != nil {
		return nil, err
	}
	var records [][]byte
	for _, r := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for t := range r.Features {
			ex, err := newExample(r.Features[t], r.TimeToTransition[t], r.Keys[t], norm)
			if err != nil {
				return nil, err
			}
			records = append(records, tfrecord.MarshalExample(ex))
		}
	}
	return records, nil
}

func newExample(v features.FeatureVector, ttt int32, keys qwop.Keys, norm *stats.Normalizer) (tfrecord.Example, error) {
	row := v.Slice()
	if norm != nil {
		var err error
		if row, err = norm.Apply(row); err != nil {
			return tfrecord.Example{}, err
		}
	}
	ex := tfrecord.Example{
		State:            make([]float32, len(row)),
		TimeToTransition: int64(ttt),
	}
	for i, x := range row {
		ex.State[i] = float32(x)
	}
	for i, down := range keys {
		if down {
			ex.Keys[i] = 1
		}
	}
	return ex, nil
}
