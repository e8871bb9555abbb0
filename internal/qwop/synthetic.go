package qwop

import (
	"math"
	"math/rand"
)

// SyntheticGenerator produces plausible-looking runs for tests, demos and
// load trials. Output is deterministic for a given seed.
type SyntheticGenerator struct {
	// Configuration
	MinHold   int32   // shortest action duration in timesteps
	MaxHold   int32   // longest action duration in timesteps
	Speed     float64 // forward body displacement per timestep
	Amplitude float64 // magnitude of limb oscillation

	rng *rand.Rand
}

// partOffsets is the resting x displacement of each part from the body.
var partOffsets = [NumBodyParts]float64{0, 0.4, 0.2, -0.2, 0.3, -0.3, 0.5, -0.4, 0.1, -0.1, 0.35, -0.25}

// NewSyntheticGenerator creates a generator seeded with seed.
func NewSyntheticGenerator(seed int64) *SyntheticGenerator {
	return &SyntheticGenerator{
		MinHold:   5,
		MaxHold:   40,
		Speed:     0.05,
		Amplitude: 0.8,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Run generates a run of the given length. Actions cover every timestep;
// the last action is clipped to end with the run.
func (g *SyntheticGenerator) Run(timesteps int) GameRun {
	run := GameRun{Poses: make([]PoseSample, timesteps)}

	bodyX := 10 * g.rng.Float64()
	phase := 2 * math.Pi * g.rng.Float64()
	for t := range run.Poses {
		bodyX += g.Speed * (1 + 0.2*g.rng.NormFloat64())
		var parts [NumBodyParts]PartState
		for i := range parts {
			swing := g.Amplitude * math.Sin(phase+0.1*float64(t)+float64(i))
			parts[i] = PartState{
				X:   float32(bodyX + partOffsets[i] + 0.1*swing),
				Y:   float32(-1.5 + 0.1*float64(i) + 0.05*swing),
				Th:  float32(swing),
				DX:  float32(g.Speed + 0.02*g.rng.NormFloat64()),
				DY:  float32(0.05 * g.rng.NormFloat64()),
				DTh: float32(0.1 * g.Amplitude * math.Cos(phase+0.1*float64(t)+float64(i))),
			}
		}
		run.Poses[t] = NewPoseSample(parts)
	}

	span := g.MaxHold - g.MinHold + 1
	if span < 1 {
		span = 1
	}
	for covered := 0; covered < timesteps; {
		hold := g.MinHold + g.rng.Int31n(span)
		if hold < 1 {
			hold = 1
		}
		if remaining := int32(timesteps - covered); hold > remaining {
			hold = remaining
		}
		run.Actions = append(run.Actions, ActionSample{
			Q:         g.rng.Intn(2) == 0,
			W:         g.rng.Intn(2) == 0,
			O:         g.rng.Intn(2) == 0,
			P:         g.rng.Intn(2) == 0,
			Timesteps: hold,
		})
		covered += int(hold)
	}
	return run
}
