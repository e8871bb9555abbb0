package stats

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/banshee-data/qwop.data/internal/fsutil"
)

const blobVersion = 1

// blob is the gob payload. Version guards against silently reading a
// future layout.
type blob struct {
	Version int
	Stats   NormalizationStats
}

// WriteBlob writes s to w as gzip-compressed gob.
func WriteBlob(w io.Writer, s *NormalizationStats) error {
	gz := gzip.NewWriter(w)
	if err := gob.NewEncoder(gz).Encode(blob{Version: blobVersion, Stats: *s}); err != nil {
		gz.Close()
		return fmt.Errorf("encode stats: %w", err)
	}
	return gz.Close()
}

// ReadBlob reads and validates statistics written by WriteBlob.
func ReadBlob(r io.Reader) (*NormalizationStats, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var b blob
	if err := gob.NewDecoder(gz).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	if b.Version != blobVersion {
		return nil, fmt.Errorf("stats blob version %d, want %d", b.Version, blobVersion)
	}
	if err := b.Stats.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stats blob: %w", err)
	}
	return &b.Stats, nil
}

// MarshalBlob is WriteBlob into a byte slice.
func MarshalBlob(s *NormalizationStats) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteBlob(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBlob is ReadBlob from a byte slice.
func UnmarshalBlob(data []byte) (*NormalizationStats, error) {
	if len(data) == 0 {
		return nil, errors.New("empty stats blob")
	}
	return ReadBlob(bytes.NewReader(data))
}

// SaveBlob writes s to path.
func SaveBlob(fsys fsutil.FileSystem, path string, s *NormalizationStats) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if err := WriteBlob(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadBlob reads statistics saved by SaveBlob.
func LoadBlob(fsys fsutil.FileSystem, path string) (*NormalizationStats, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadBlob(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Text export file names, one value per line in column order.
const (
	TextMinFile   = "state_min.txt"
	TextMaxFile   = "state_max.txt"
	TextMeanFile  = "state_mean.txt"
	TextRangeFile = "state_range.txt"
	TextStdevFile = "state_stdev.txt"
	TextCountFile = "state_count.txt"
)

func (s *NormalizationStats) textColumns() []struct {
	name string
	v    *[]float64
} {
	return []struct {
		name string
		v    *[]float64
	}{
		{TextMinFile, &s.Min},
		{TextMaxFile, &s.Max},
		{TextMeanFile, &s.Mean},
		{TextRangeFile, &s.Range},
		{TextStdevFile, &s.Stdev},
	}
}

// ExportText writes s into dir as plain text files for consumers that do
// not read the blob format.
func ExportText(fsys fsutil.FileSystem, dir string, s *NormalizationStats) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, c := range s.textColumns() {
		var b strings.Builder
		for _, v := range *c.v {
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			b.WriteByte('\n')
		}
		if err := fsys.WriteFile(filepath.Join(dir, c.name), []byte(b.String()), 0644); err != nil {
			return err
		}
	}
	count := strconv.FormatInt(s.Count, 10) + "\n"
	return fsys.WriteFile(filepath.Join(dir, TextCountFile), []byte(count), 0644)
}

// LoadText reads statistics written by ExportText. The count file is
// optional; without it Count is zero and the result will not pass
// Validate, but it passes ValidateColumns and can drive a Normalizer.
func LoadText(fsys fsutil.FileSystem, dir string) (*NormalizationStats, error) {
	s := &NormalizationStats{}
	for _, c := range s.textColumns() {
		path := filepath.Join(dir, c.name)
		v, err := readFloats(fsys, path)
		if err != nil {
			return nil, err
		}
		*c.v = v
	}
	if err := s.validateShape(); err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}

	countPath := filepath.Join(dir, TextCountFile)
	if fsys.Exists(countPath) {
		data, err := fsys.ReadFile(countPath)
		if err != nil {
			return nil, err
		}
		s.Count, err = strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", countPath, err)
		}
	}
	return s, nil
}

func readFloats(fsys fsutil.FileSystem, path string) ([]float64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []float64
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
