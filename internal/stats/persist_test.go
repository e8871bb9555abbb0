package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/qwop.data/internal/fsutil"
)

func computedStats(t *testing.T) *NormalizationStats {
	t.Helper()
	s, err := Compute(context.Background(), NewSliceSource(randomRows(9, 300, 72), 50), 72, ComputeOptions{})
	require.NoError(t, err)
	return s
}

func TestBlob_RoundTrip(t *testing.T) {
	s := computedStats(t)

	data, err := MarshalBlob(s)
	require.NoError(t, err)
	got, err := UnmarshalBlob(data)
	require.NoError(t, err)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("blob round trip (-want +got):\n%s", diff)
	}
}

func TestBlob_Rejects(t *testing.T) {
	_, err := UnmarshalBlob(nil)
	assert.Error(t, err)

	_, err = UnmarshalBlob([]byte("not gzip at all"))
	assert.Error(t, err)

	data, err := MarshalBlob(computedStats(t))
	require.NoError(t, err)
	_, err = UnmarshalBlob(data[:len(data)/2])
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteBlob(&buf, &NormalizationStats{Count: 0, Min: []float64{1}}))
	_, err = ReadBlob(&buf)
	assert.ErrorContains(t, err, "invalid stats blob")
}

func TestSaveLoadBlob(t *testing.T) {
	s := computedStats(t)

	for name, fsys := range map[string]fsutil.FileSystem{
		"memory": fsutil.NewMemoryFileSystem(),
		"os":     fsutil.OSFileSystem{},
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", "stats.gob.gz")
			require.NoError(t, SaveBlob(fsys, path, s))
			got, err := LoadBlob(fsys, path)
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}

	_, err := LoadBlob(fsutil.NewMemoryFileSystem(), "/missing")
	assert.Error(t, err)
}

func TestText_RoundTrip(t *testing.T) {
	s := computedStats(t)
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, ExportText(fsys, "/stats", s))

	for _, name := range []string{TextMinFile, TextMaxFile, TextMeanFile, TextRangeFile, TextStdevFile, TextCountFile} {
		assert.True(t, fsys.Exists(filepath.Join("/stats", name)), name)
	}

	got, err := LoadText(fsys, "/stats")
	require.NoError(t, err)
	// 'g' with -1 precision round-trips float64 exactly.
	assert.Equal(t, s, got)
	assert.NoError(t, got.Validate())
}

func TestLoadText_CountOptional(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	for name, body := range map[string]string{
		TextMinFile:   "0\n1\n",
		TextMaxFile:   "2\n1\n",
		TextMeanFile:  "1\n1\n",
		TextRangeFile: "2\n0\n",
		TextStdevFile: "0.5\n0\n\n",
	} {
		require.NoError(t, fsys.WriteFile("/legacy/"+name, []byte(body), 0644))
	}

	s, err := LoadText(fsys, "/legacy")
	require.NoError(t, err)
	assert.Zero(t, s.Count)
	assert.Equal(t, []float64{0.5, 0}, s.Stdev)
	assert.Equal(t, []float64{0.5, 0}, Rescale(s, []float64{1, 1}))

	n, err := NewNormalizer(s, MethodStdev)
	require.NoError(t, err)
	got, err := n.Apply([]float64{2, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0}, got)
}

func TestLoadText_Errors(t *testing.T) {
	write := func(fsys fsutil.FileSystem, overrides map[string]string) {
		files := map[string]string{
			TextMinFile:   "0\n",
			TextMaxFile:   "1\n",
			TextMeanFile:  "0.5\n",
			TextRangeFile: "1\n",
			TextStdevFile: "0.1\n",
			TextCountFile: "4\n",
		}
		for k, v := range overrides {
			files[k] = v
		}
		for name, body := range files {
			require.NoError(t, fsys.WriteFile("/s/"+name, []byte(body), 0644))
		}
	}

	tests := []struct {
		name      string
		overrides map[string]string
		want      string
	}{
		{"width mismatch", map[string]string{TextMeanFile: "0.5\n0.5\n"}, "width"},
		{"bad float", map[string]string{TextRangeFile: "one\n"}, "state_range.txt:1"},
		{"bad count", map[string]string{TextCountFile: "many\n"}, "state_count.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fsutil.NewMemoryFileSystem()
			write(fsys, tt.overrides)
			_, err := LoadText(fsys, "/s")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadText(fsutil.NewMemoryFileSystem(), "/nothing")
	assert.Error(t, err)
}
