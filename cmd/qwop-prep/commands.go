package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/qwop.data/internal/config"
	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/monitoring"
	"github.com/banshee-data/qwop.data/internal/pipeline"
	"github.com/banshee-data/qwop.data/internal/report"
	"github.com/banshee-data/qwop.data/internal/stats"
	"github.com/banshee-data/qwop.data/internal/store"
	"github.com/banshee-data/qwop.data/internal/tfrecord"
	"github.com/banshee-data/qwop.data/internal/version"
)

// stringList collects a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// setFlags reports which flags were given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func loadConfig(fsys fsutil.FileSystem, path string) (*config.PipelineConfig, error) {
	if path == "" {
		return config.EmptyPipelineConfig(), nil
	}
	return config.LoadPipelineConfig(fsys, path)
}

// inputFlags are shared by the commands that read game logs.
type inputFlags struct {
	configPath string
	dirs       stringList
	ext        string
	workers    int
	discard    int
	layout     string
}

func (f *inputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Pipeline config JSON file (defaults apply when omitted)")
	fs.Var(&f.dirs, "dir", "Input directory of game logs (repeatable, overrides input_dirs)")
	fs.StringVar(&f.ext, "ext", "", "Comma-separated log file extensions (overrides file_extensions)")
	fs.IntVar(&f.workers, "workers", 0, "Files decoded concurrently, 0 for one per CPU (overrides workers)")
	fs.IntVar(&f.discard, "discard", 0, "Timesteps discarded before the end of each run (overrides discard_end_count)")
	fs.StringVar(&f.layout, "layout", "", "Action list layout: transitions or per_timestep (overrides action_layout)")
}

// apply loads the config file and lays the given flags over it.
func (f *inputFlags) apply(fs *flag.FlagSet, fsys fsutil.FileSystem) (*config.PipelineConfig, error) {
	cfg, err := loadConfig(fsys, f.configPath)
	if err != nil {
		return nil, err
	}
	set := setFlags(fs)
	if len(f.dirs) > 0 {
		cfg.InputDirs = f.dirs
	}
	if set["ext"] {
		cfg.FileExtensions = splitList(f.ext)
	}
	if set["workers"] {
		cfg.Workers = &f.workers
	}
	if set["discard"] {
		cfg.DiscardEndCount = &f.discard
	}
	if set["layout"] {
		cfg.ActionLayout = &f.layout
	}
	return cfg, cfg.Validate()
}

func runStats(ctx context.Context, args []string, stdout io.Writer, fsys fsutil.FileSystem) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(stdout)
	var in inputFlags
	in.register(fs)
	out := fs.String("out", "", "Stats blob output path (overrides stats_path)")
	textDir := fs.String("text", "", "Directory for state_*.txt exports (overrides text_export_dir)")
	dbPath := fs.String("db", "", "Statistics catalogue database (overrides db_path)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := in.apply(fs, fsys)
	if err != nil {
		return err
	}
	if *out != "" {
		cfg.StatsPath = out
	}
	if *textDir != "" {
		cfg.TextExportDir = textDir
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}

	job, err := pipeline.NewJob(fsys, cfg)
	if err != nil {
		return err
	}
	res, err := job.ComputeStats(ctx)
	if err != nil {
		return err
	}

	statsPath := cfg.GetStatsPath()
	if err := stats.SaveBlob(fsys, statsPath, res.Stats); err != nil {
		return err
	}
	monitoring.Logf("[stats] wrote %s", statsPath)
	if dir := cfg.GetTextExportDir(); dir != "" {
		if err := stats.ExportText(fsys, dir, res.Stats); err != nil {
			return err
		}
		monitoring.Logf("[stats] exported text files to %s", dir)
	}

	var statsID string
	if db := cfg.GetDBPath(); db != "" {
		if statsID, err = recordRun(db, cfg, res); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "stats: %d timesteps from %d files, width %d -> %s\n",
		res.Stats.Count, len(res.Files), res.Stats.Width(), statsPath)
	if statsID != "" {
		fmt.Fprintf(stdout, "stats_id: %s\n", statsID)
	}
	return nil
}

// recordRun stores res in the catalogue at dbPath and returns its ID.
func recordRun(dbPath string, cfg *config.PipelineConfig, res *pipeline.StatsResult) (string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("open catalogue: %w", err)
	}
	defer st.Close()

	cfgJSON, err := json.Marshal(cfg.Effective())
	if err != nil {
		return "", err
	}
	run := &store.StatsRun{
		DiscardEndCount: cfg.GetDiscardEndCount(),
		ConfigJSON:      cfgJSON,
		Stats:           res.Stats,
	}
	for _, f := range res.Files {
		run.Sources = append(run.Sources, store.SourceFile(f))
	}
	if err := st.InsertRun(run); err != nil {
		return "", err
	}
	monitoring.Logf("[stats] recorded run %s in %s", run.StatsID, dbPath)
	return run.StatsID, nil
}

// loadStats reads statistics from a blob, or from a text export directory
// when textDir is set.
func loadStats(fsys fsutil.FileSystem, blobPath, textDir string) (*stats.NormalizationStats, error) {
	if textDir != "" {
		return stats.LoadText(fsys, textDir)
	}
	if blobPath == "" {
		return nil, errors.New("no statistics given: set -stats or -stats-text")
	}
	return stats.LoadBlob(fsys, blobPath)
}

func runRecords(ctx context.Context, args []string, stdout io.Writer, fsys fsutil.FileSystem) error {
	fs := flag.NewFlagSet("records", flag.ContinueOnError)
	fs.SetOutput(stdout)
	var in inputFlags
	in.register(fs)
	statsPath := fs.String("stats", "", "Stats blob to normalize with (defaults to stats_path)")
	statsText := fs.String("stats-text", "", "Load statistics from a text export directory instead of a blob")
	out := fs.String("out", "", "TFRecord output path (required; .gz compresses)")
	normalize := fs.String("normalize", "", "Normalization: range, stdev or none (overrides normalization)")
	gzip := fs.Bool("gzip", false, "Compress the output (overrides compress_records)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		fs.Usage()
		return errors.New("records: -out is required")
	}

	cfg, err := in.apply(fs, fsys)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if set["normalize"] {
		cfg.Normalization = normalize
	}
	if set["gzip"] {
		cfg.CompressRecords = gzip
	}
	if *statsPath != "" {
		cfg.StatsPath = statsPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var norm *stats.Normalizer
	if method := cfg.GetNormalization(); method != "none" {
		s, err := loadStats(fsys, cfg.GetStatsPath(), *statsText)
		if err != nil {
			return err
		}
		m, err := stats.ParseMethod(method)
		if err != nil {
			return err
		}
		if norm, err = stats.NewNormalizer(s, m); err != nil {
			return err
		}
	}

	job, err := pipeline.NewJob(fsys, cfg)
	if err != nil {
		return err
	}

	path := *out
	if cfg.GetCompressRecords() && !strings.HasSuffix(path, tfrecord.GzipExtension) {
		path += tfrecord.GzipExtension
	}
	w, err := tfrecord.Create(fsys, path)
	if err != nil {
		return err
	}
	res, err := job.Materialize(ctx, w, norm)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	method := cfg.GetNormalization()
	fmt.Fprintf(stdout, "records: %d examples from %d files (normalization %s) -> %s\n",
		res.Records, len(res.Files), method, path)
	return nil
}

func runReport(args []string, stdout io.Writer, fsys fsutil.FileSystem) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stdout)
	statsPath := fs.String("stats", "", "Stats blob to chart")
	statsText := fs.String("stats-text", "", "Load statistics from a text export directory instead of a blob")
	htmlPath := fs.String("html", "", "Interactive HTML chart output path")
	pngPath := fs.String("png", "", "Static PNG chart output path")
	title := fs.String("title", "QWOP feature statistics", "Chart title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *htmlPath == "" && *pngPath == "" {
		fs.Usage()
		return errors.New("report: set -html, -png or both")
	}

	s, err := loadStats(fsys, *statsPath, *statsText)
	if err != nil {
		return err
	}

	if *htmlPath != "" {
		f, err := fsys.Create(*htmlPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", *htmlPath, err)
		}
		err = report.WriteHTML(f, s, report.HTMLOptions{
			Title:    *title,
			Subtitle: fmt.Sprintf("%d timesteps, %d features", s.Count, s.Width()),
		})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "report: wrote %s\n", *htmlPath)
	}
	if *pngPath != "" {
		if err := report.WritePNG(fsys, *pngPath, s); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "report: wrote %s\n", *pngPath)
	}
	return nil
}

func runHistory(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stdout)
	dbPath := fs.String("db", "", "Statistics catalogue database (required)")
	limit := fs.Int("n", 10, "Number of most recent runs to list")
	show := fs.String("id", "", "Show the source files of one run")
	latest := fs.Bool("latest", false, "Show the source files of the most recent run")
	del := fs.String("delete", "", "Delete one run and its source rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		fs.Usage()
		return errors.New("history: -db is required")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open catalogue: %w", err)
	}
	defer st.Close()

	switch {
	case *del != "":
		if err := st.DeleteRun(*del); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "deleted %s\n", *del)
		return nil
	case *show != "":
		run, err := st.GetRun(*show)
		if err != nil {
			return err
		}
		return printRun(run, stdout)
	case *latest:
		run, err := st.LatestRun()
		if err != nil {
			return err
		}
		return printRun(run, stdout)
	}

	runs, err := st.ListRuns(*limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATS ID\tCREATED\tCOUNT\tWIDTH\tDISCARD")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", r.StatsID,
			time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339), r.Count, r.Width, r.DiscardEndCount)
	}
	return tw.Flush()
}

func printRun(run *store.StatsRun, stdout io.Writer) error {
	fmt.Fprintf(stdout, "stats_id: %s\ncount: %d\nconfig: %s\n", run.StatsID, run.Count, run.ConfigJSON)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tRUNS\tRUNS KEPT\tTIMESTEPS\tKEPT")
	for _, src := range run.Sources {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", src.Path, src.Runs, src.RunsKept, src.Timesteps, src.Kept)
	}
	return tw.Flush()
}

func runVersion(stdout io.Writer) error {
	fmt.Fprintf(stdout, "qwop-prep version %s\n", version.String())
	return nil
}
