// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/qwop"
	"github.com/banshee-data/qwop.data/internal/qwop/densedata"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertFloatsNear checks two vectors are equal in length and elementwise
// within tol.
func AssertFloatsNear(t *testing.T, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("[%d] = %g, want %g (tol %g)", i, got[i], want[i], tol)
		}
	}
}

// UniformPose builds a complete pose where every part shares the same state
// except for its x position, which is bodyX plus the part index.
func UniformPose(bodyX float32, s qwop.PartState) qwop.PoseSample {
	var parts [qwop.NumBodyParts]qwop.PartState
	for i := range parts {
		parts[i] = s
		parts[i].X = bodyX + float32(i)
	}
	return qwop.NewPoseSample(parts)
}

// RunWithHolds builds a run of n synthetic poses driven by actions with the
// given hold durations. The holds are used as given; they need not cover n.
func RunWithHolds(seed int64, n int, holds ...int32) qwop.GameRun {
	run := qwop.NewSyntheticGenerator(seed).Run(n)
	run.Actions = make([]qwop.ActionSample, len(holds))
	for i, h := range holds {
		run.Actions[i] = qwop.ActionSample{Q: i%2 == 0, P: i%2 == 1, Timesteps: h}
	}
	return run
}

// WriteDataSet encodes runs and stores them at path.
func WriteDataSet(t *testing.T, fsys fsutil.FileSystem, path string, runs ...qwop.GameRun) {
	t.Helper()
	if err := fsys.WriteFile(path, densedata.Encode(runs), 0644); err != nil {
		t.Fatalf("write dataset %s: %v", path, err)
	}
}
