package features

import (
	"errors"

	"github.com/banshee-data/qwop.data/internal/qwop"
)

// Extractor derives training rows from decoded runs.
type Extractor struct {
	DiscardEndCount int
	Layout          ActionLayout
}

// NewExtractor returns an Extractor with the default discard window and the
// transitions layout.
func NewExtractor() Extractor {
	return Extractor{DiscardEndCount: DefaultDiscardEndCount, Layout: LayoutTransitions}
}

// RunExamples holds the kept timesteps of one run. Features,
// TimeToTransition and Keys are index-aligned.
type RunExamples struct {
	Features         []FeatureVector
	TimeToTransition []int32
	Keys             []qwop.Keys
	Cutoff           int // index of the last kept timestep, -1 if none
	Total            int // timesteps in the source run
}

// Len is the number of kept timesteps.
func (r RunExamples) Len() int { return len(r.Features) }

// Extract aligns the run's actions and builds a feature vector for every
// kept timestep. Timesteps past the cutoff are never inspected, so a pose
// missing a part there is not an error.
//
// Errors are *qwop.MalformedRunError with Timestep set; the caller owns the
// Path and Run fields.
func (e Extractor) Extract(run qwop.GameRun) (RunExamples, error) {
	actions := run.Actions
	if e.Layout == LayoutPerTimestep {
		var err error
		if actions, err = CollapsePerTimestep(actions); err != nil {
			return RunExamples{}, err
		}
	}

	n := run.Timesteps()
	al, err := Align(actions, n, e.DiscardEndCount)
	if err != nil {
		return RunExamples{}, err
	}

	out := RunExamples{
		Features:         make([]FeatureVector, al.Len()),
		TimeToTransition: al.TimeToTransition,
		Keys:             make([]qwop.Keys, al.Len()),
		Cutoff:           al.CutoffIndex,
		Total:            n,
	}
	for t := 0; t < al.Len(); t++ {
		v, err := Build(run.Poses[t])
		if err != nil {
			var mre *qwop.MalformedRunError
			if errors.As(err, &mre) {
				mre.Timestep = t
			}
			return RunExamples{}, err
		}
		out.Features[t] = v
		out.Keys[t] = actions[al.Active[t]].Keys()
	}
	return out, nil
}
