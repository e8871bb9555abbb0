// Package qwop defines the decoded game-log data model shared by the
// decoder, feature extraction and statistics packages.
//
// A GameRun is one playthrough: a PoseSample per simulated timestep and an
// ActionSample per control decision. Both are immutable value data once
// decoded.
package qwop

import "fmt"

// BodyPart identifies one of the tracked rigid-body segments of the runner.
// The declaration order is the feature-vector layout order.
type BodyPart int

const (
	Body BodyPart = iota
	Head
	RThigh
	LThigh
	RCalf
	LCalf
	RFoot
	LFoot
	RUArm
	LUArm
	RLArm
	LLArm
)

const (
	// NumBodyParts is the number of tracked body parts.
	NumBodyParts = 12
	// StatesPerPart is the number of scalar fields recorded per body part.
	StatesPerPart = 6
	// FeatureWidth is the length of a flattened pose feature vector.
	FeatureWidth = NumBodyParts * StatesPerPart
)

var bodyPartNames = [NumBodyParts]string{
	"BODY", "HEAD", "RTHIGH", "LTHIGH", "RCALF", "LCALF",
	"RFOOT", "LFOOT", "RUARM", "LUARM", "RLARM", "LLARM",
}

// BodyParts lists every body part in layout order.
func BodyParts() []BodyPart {
	parts := make([]BodyPart, NumBodyParts)
	for i := range parts {
		parts[i] = BodyPart(i)
	}
	return parts
}

func (b BodyPart) String() string {
	if b < 0 || int(b) >= NumBodyParts {
		return fmt.Sprintf("BodyPart(%d)", int(b))
	}
	return bodyPartNames[b]
}

// stateFieldNames is the fixed per-part field order.
var stateFieldNames = [StatesPerPart]string{"x", "y", "th", "dx", "dy", "dth"}

// FeatureLabel names column i of a flattened feature vector, e.g. "RCALF.dy".
func FeatureLabel(i int) string {
	if i < 0 || i >= FeatureWidth {
		return fmt.Sprintf("col%d", i)
	}
	return BodyPart(i/StatesPerPart).String() + "." + stateFieldNames[i%StatesPerPart]
}

// PartState is the planar rigid-body state of a single body part.
type PartState struct {
	X   float32
	Y   float32
	Th  float32
	DX  float32
	DY  float32
	DTh float32
}

// Fields returns the state in the fixed x, y, th, dx, dy, dth order.
func (s PartState) Fields() [StatesPerPart]float32 {
	return [StatesPerPart]float32{s.X, s.Y, s.Th, s.DX, s.DY, s.DTh}
}

// PoseSample is the state of every body part at one timestep. Parts that
// were absent from the log stay absent; they are never zero-filled.
type PoseSample struct {
	parts   [NumBodyParts]PartState
	present [NumBodyParts]bool
}

// NewPoseSample builds a complete pose from a state per body part.
func NewPoseSample(parts [NumBodyParts]PartState) PoseSample {
	p := PoseSample{parts: parts}
	for i := range p.present {
		p.present[i] = true
	}
	return p
}

// Part returns the state of body part b and whether it was recorded.
func (p PoseSample) Part(b BodyPart) (PartState, bool) {
	if b < 0 || int(b) >= NumBodyParts {
		return PartState{}, false
	}
	return p.parts[b], p.present[b]
}

// WithPart returns a copy of p with body part b set.
func (p PoseSample) WithPart(b BodyPart, s PartState) PoseSample {
	p.parts[b] = s
	p.present[b] = true
	return p
}

// Missing returns the first absent body part, if any.
func (p PoseSample) Missing() (BodyPart, bool) {
	for i, ok := range p.present {
		if !ok {
			return BodyPart(i), true
		}
	}
	return 0, false
}

// Keys is the QWOP key state, in Q, W, O, P order.
type Keys [4]bool

// ActionSample is one control decision: the keys held and how many
// timesteps they are held before the next transition.
type ActionSample struct {
	Q, W, O, P bool
	Timesteps  int32
}

// Keys returns the pressed keys of the action.
func (a ActionSample) Keys() Keys {
	return Keys{a.Q, a.W, a.O, a.P}
}

func (a ActionSample) String() string {
	k := []byte("qwop")
	for i, down := range a.Keys() {
		if down {
			k[i] -= 'a' - 'A'
		}
	}
	return fmt.Sprintf("%s×%d", k, a.Timesteps)
}

// GameRun is one decoded playthrough.
type GameRun struct {
	Poses   []PoseSample
	Actions []ActionSample
}

// Timesteps is the number of simulated timesteps in the run.
func (r GameRun) Timesteps() int { return len(r.Poses) }
