package features

import (
	"fmt"

	"github.com/banshee-data/qwop.data/internal/qwop"
)

// DefaultDiscardEndCount is the trailing window, in timesteps, inside which
// no new action countdown is started.
const DefaultDiscardEndCount = 100

// ActionLayout describes how action records map onto timesteps in a log.
type ActionLayout string

const (
	// LayoutTransitions has one action record per key change, each covering
	// Timesteps consecutive timesteps.
	LayoutTransitions ActionLayout = "transitions"
	// LayoutPerTimestep has one action record per timestep; every record of a
	// hold repeats the hold's Timesteps.
	LayoutPerTimestep ActionLayout = "per_timestep"
)

// ParseActionLayout validates a layout name. The empty string selects
// LayoutTransitions.
func ParseActionLayout(s string) (ActionLayout, error) {
	switch ActionLayout(s) {
	case "", LayoutTransitions:
		return LayoutTransitions, nil
	case LayoutPerTimestep:
		return LayoutPerTimestep, nil
	}
	return "", fmt.Errorf("unknown action layout %q (want %q or %q)", s, LayoutTransitions, LayoutPerTimestep)
}

// Alignment is the per-timestep action labelling of one run, truncated at
// CutoffIndex. TimeToTransition and Active both have CutoffIndex+1 entries.
type Alignment struct {
	CutoffIndex      int
	TimeToTransition []int32
	Active           []int // index into the action list driving each timestep
}

// Len is the number of kept timesteps.
func (a Alignment) Len() int { return a.CutoffIndex + 1 }

// Align labels each of n timesteps with the number of timesteps remaining
// until the next key change.
//
// Countdowns tick down by one per timestep. When one runs out, the next
// action starts a new countdown at its Timesteps, unless that action would
// end within discardEndCount timesteps of the end of the run. In that case
// the run is cut off just before the current timestep. A cutoff at -1 means
// no timestep is usable.
func Align(actions []qwop.ActionSample, n, discardEndCount int) (Alignment, error) {
	if discardEndCount < 0 {
		return Alignment{}, fmt.Errorf("discard end count %d is negative", discardEndCount)
	}

	al := Alignment{
		CutoffIndex:      n - 1,
		TimeToTransition: make([]int32, 0, n),
		Active:           make([]int, 0, n),
	}

	var prevTrans int32
	next := 0
	for t := 0; t < n; t++ {
		if prevTrans > 1 {
			prevTrans--
			al.TimeToTransition = append(al.TimeToTransition, prevTrans)
			al.Active = append(al.Active, next-1)
			continue
		}

		if next >= len(actions) {
			return Alignment{}, &qwop.MalformedRunError{
				Timestep: t,
				Part:     -1,
				Reason:   fmt.Sprintf("actions exhausted after %d records, %d timesteps remain", len(actions), n-t),
			}
		}
		a := actions[next]
		if a.Timesteps <= 0 {
			return Alignment{}, &qwop.MalformedRunError{
				Timestep: t,
				Part:     -1,
				Reason:   fmt.Sprintf("action %d has non-positive duration %d", next, a.Timesteps),
			}
		}

		if n-t-int(a.Timesteps) <= discardEndCount {
			al.CutoffIndex = t - 1
			break
		}
		prevTrans = a.Timesteps
		al.TimeToTransition = append(al.TimeToTransition, prevTrans)
		al.Active = append(al.Active, next)
		next++
	}
	return al, nil
}

// CollapsePerTimestep converts a per-timestep action list into one record
// per transition. Record i starts a hold lasting actions[i].Timesteps
// records, so the next transition is read at i+Timesteps.
func CollapsePerTimestep(actions []qwop.ActionSample) ([]qwop.ActionSample, error) {
	var out []qwop.ActionSample
	for i := 0; i < len(actions); {
		a := actions[i]
		if a.Timesteps <= 0 {
			return nil, &qwop.MalformedRunError{
				Timestep: i,
				Part:     -1,
				Reason:   fmt.Sprintf("action record has non-positive duration %d", a.Timesteps),
			}
		}
		out = append(out, a)
		i += int(a.Timesteps)
	}
	return out, nil
}
