package testutil

import (
	"testing"

	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/qwop"
	"github.com/banshee-data/qwop.data/internal/qwop/densedata"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
}

func TestAssertFloatsNear(t *testing.T) {
	t.Parallel()

	AssertFloatsNear(t, []float64{1, 2}, []float64{1.0000001, 2}, 1e-6)
}

func TestUniformPose(t *testing.T) {
	t.Parallel()

	p := UniformPose(3, qwop.PartState{Y: 1})
	head, ok := p.Part(qwop.Head)
	if !ok {
		t.Fatal("expected head to be present")
	}
	if head.X != 4 || head.Y != 1 {
		t.Errorf("unexpected head state %+v", head)
	}
}

func TestRunWithHolds(t *testing.T) {
	t.Parallel()

	run := RunWithHolds(1, 20, 5, 7)
	if len(run.Poses) != 20 {
		t.Errorf("expected 20 poses, got %d", len(run.Poses))
	}
	if len(run.Actions) != 2 || run.Actions[1].Timesteps != 7 {
		t.Errorf("unexpected actions %v", run.Actions)
	}
}

func TestWriteDataSet(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	WriteDataSet(t, mfs, "/logs/a.proto", RunWithHolds(2, 10, 10))

	runs, err := densedata.DecodeFile(mfs, "/logs/a.proto")
	AssertNoError(t, err)
	if len(runs) != 1 || len(runs[0].Poses) != 10 {
		t.Errorf("unexpected decoded runs: %d", len(runs))
	}
}
