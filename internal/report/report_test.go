package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/qwop"
	"github.com/banshee-data/qwop.data/internal/stats"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func featureStats(width int) *stats.NormalizationStats {
	s := &stats.NormalizationStats{Count: 1234}
	for i := 0; i < width; i++ {
		lo, hi := -float64(i), float64(2*i)
		s.Min = append(s.Min, lo)
		s.Max = append(s.Max, hi)
		s.Mean = append(s.Mean, (lo+hi)/2)
		s.Range = append(s.Range, hi-lo)
		s.Stdev = append(s.Stdev, float64(i)/3)
	}
	return s
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHTML(&buf, featureStats(qwop.FeatureWidth), HTMLOptions{Title: "nightly logs"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "nightly logs")
	assert.Contains(t, out, "timesteps=1234 columns=72")
	assert.Contains(t, out, "RCALF.dy")
	assert.Contains(t, out, "LLARM.dth")
	for _, series := range []string{"min", "mean", "max", "range", "stdev"} {
		assert.Contains(t, out, series)
	}
}

func TestWriteHTML_WideStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, featureStats(qwop.FeatureWidth+2), HTMLOptions{}))
	assert.Contains(t, buf.String(), "col73")
	assert.Contains(t, buf.String(), "Feature statistics")
}

func TestWriteHTML_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteHTML(&buf, nil, HTMLOptions{}))
	assert.Error(t, WriteHTML(&buf, &stats.NormalizationStats{}, HTMLOptions{}))
	assert.Zero(t, buf.Len())
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPNG(&buf, featureStats(qwop.FeatureWidth)))
	require.Greater(t, buf.Len(), len(pngMagic))
	assert.Equal(t, pngMagic, buf.Bytes()[:len(pngMagic)])

	assert.Error(t, RenderPNG(&buf, nil))
}

func TestWritePNG(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, WritePNG(fsys, "/reports/spread.png", featureStats(6)))

	data, err := fsys.ReadFile("/reports/spread.png")
	require.NoError(t, err)
	assert.Equal(t, pngMagic, data[:len(pngMagic)])
}
