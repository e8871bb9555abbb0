// Package config loads the JSON configuration of the preprocessing pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/qwop.data/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// maxFileSize bounds config files.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// PipelineConfig is the root configuration. Pointer fields distinguish
// "not set" from zero values; the Get* methods supply defaults.
type PipelineConfig struct {
	// Input discovery
	InputDirs      []string `json:"input_dirs,omitempty"`
	FileExtensions []string `json:"file_extensions,omitempty"`

	// Feature extraction
	DiscardEndCount *int    `json:"discard_end_count,omitempty"`
	ActionLayout    *string `json:"action_layout,omitempty"` // "transitions" or "per_timestep"

	// Statistics
	Workers      *int  `json:"workers,omitempty"` // 0 means GOMAXPROCS
	CacheDecoded *bool `json:"cache_decoded,omitempty"`

	// Outputs
	StatsPath       *string `json:"stats_path,omitempty"`
	TextExportDir   *string `json:"text_export_dir,omitempty"`
	DBPath          *string `json:"db_path,omitempty"`
	Normalization   *string `json:"normalization,omitempty"` // "range", "stdev" or "none"
	CompressRecords *bool   `json:"compress_records,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

// EmptyPipelineConfig returns a PipelineConfig with every field unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file. The file must
// have a .json extension and be at most 1MB. Omitted fields keep their
// defaults, so partial configs are safe.
func LoadPipelineConfig(fsys fsutil.FileSystem, path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upward from the
// working directory. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(fsutil.OSFileSystem{}, path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	if c.DiscardEndCount != nil && *c.DiscardEndCount < 0 {
		return fmt.Errorf("discard_end_count must be non-negative, got %d", *c.DiscardEndCount)
	}
	if c.ActionLayout != nil {
		switch *c.ActionLayout {
		case "", "transitions", "per_timestep":
		default:
			return fmt.Errorf("action_layout must be \"transitions\" or \"per_timestep\", got %q", *c.ActionLayout)
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.Normalization != nil {
		switch *c.Normalization {
		case "", "range", "stdev", "none":
		default:
			return fmt.Errorf("normalization must be \"range\", \"stdev\" or \"none\", got %q", *c.Normalization)
		}
	}
	for _, ext := range c.FileExtensions {
		if strings.TrimPrefix(ext, ".") == "" {
			return fmt.Errorf("file_extensions contains an empty extension")
		}
	}
	return nil
}

// GetInputDirs returns the input directories.
func (c *PipelineConfig) GetInputDirs() []string {
	return c.InputDirs
}

// GetFileExtensions returns the log file extensions or the default.
func (c *PipelineConfig) GetFileExtensions() []string {
	if len(c.FileExtensions) == 0 {
		return []string{".proto"}
	}
	return c.FileExtensions
}

// GetDiscardEndCount returns the discard_end_count value or the default.
func (c *PipelineConfig) GetDiscardEndCount() int {
	if c.DiscardEndCount == nil {
		return 100
	}
	return *c.DiscardEndCount
}

// GetActionLayout returns the action_layout value or the default.
func (c *PipelineConfig) GetActionLayout() string {
	if c.ActionLayout == nil || *c.ActionLayout == "" {
		return "transitions"
	}
	return *c.ActionLayout
}

// GetWorkers returns the workers value or the default (0, all CPUs).
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetCacheDecoded returns the cache_decoded value or the default.
func (c *PipelineConfig) GetCacheDecoded() bool {
	if c.CacheDecoded == nil {
		return false
	}
	return *c.CacheDecoded
}

// GetStatsPath returns the stats_path value or the default.
func (c *PipelineConfig) GetStatsPath() string {
	if c.StatsPath == nil || *c.StatsPath == "" {
		return "state_stats.gob.gz"
	}
	return *c.StatsPath
}

// GetTextExportDir returns the text_export_dir value. Empty disables the
// text export.
func (c *PipelineConfig) GetTextExportDir() string {
	if c.TextExportDir == nil {
		return ""
	}
	return *c.TextExportDir
}

// GetDBPath returns the db_path value. Empty disables the catalogue.
func (c *PipelineConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetNormalization returns the normalization value or the default.
func (c *PipelineConfig) GetNormalization() string {
	if c.Normalization == nil || *c.Normalization == "" {
		return "range"
	}
	return *c.Normalization
}

// GetCompressRecords returns the compress_records value or the default.
func (c *PipelineConfig) GetCompressRecords() bool {
	if c.CompressRecords == nil {
		return false
	}
	return *c.CompressRecords
}

// Effective returns a copy of c with every default filled in, suitable for
// recording alongside results.
func (c *PipelineConfig) Effective() *PipelineConfig {
	return &PipelineConfig{
		InputDirs:       append([]string(nil), c.GetInputDirs()...),
		FileExtensions:  append([]string(nil), c.GetFileExtensions()...),
		DiscardEndCount: ptrInt(c.GetDiscardEndCount()),
		ActionLayout:    ptrString(c.GetActionLayout()),
		Workers:         ptrInt(c.GetWorkers()),
		CacheDecoded:    ptrBool(c.GetCacheDecoded()),
		StatsPath:       ptrString(c.GetStatsPath()),
		TextExportDir:   ptrString(c.GetTextExportDir()),
		DBPath:          ptrString(c.GetDBPath()),
		Normalization:   ptrString(c.GetNormalization()),
		CompressRecords: ptrBool(c.GetCompressRecords()),
	}
}
