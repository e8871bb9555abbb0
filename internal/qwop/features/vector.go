// Package features turns decoded game runs into fixed-width training rows:
// a body-relative pose vector and a time-to-transition label per timestep.
package features

import (
	"github.com/banshee-data/qwop.data/internal/qwop"
)

// FeatureVector is one flattened pose. Column i is named by
// qwop.FeatureLabel(i).
type FeatureVector [qwop.FeatureWidth]float64

// Slice returns the vector as a slice sharing no memory with v.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, len(v))
	copy(out, v[:])
	return out
}

// Build flattens p into a FeatureVector. Every x position is taken relative
// to the body, so the BODY x column is always exactly zero. All other fields,
// including velocities, are copied unchanged.
//
// A pose with an absent body part yields a *qwop.MalformedRunError naming the
// part; Run and Timestep are left for the caller to fill in.
func Build(p qwop.PoseSample) (FeatureVector, error) {
	if part, missing := p.Missing(); missing {
		return FeatureVector{}, &qwop.MalformedRunError{
			Timestep: -1,
			Part:     part,
			Reason:   "body part missing",
		}
	}

	var parts [qwop.NumBodyParts]qwop.PartState
	for _, b := range qwop.BodyParts() {
		parts[b], _ = p.Part(b)
	}
	return flatten(parts, float64(parts[qwop.Body].X)), nil
}

// flatten lays parts out in body-part order, six fields each, subtracting
// originX from every x field. It is the only place that knows the layout.
func flatten(parts [qwop.NumBodyParts]qwop.PartState, originX float64) FeatureVector {
	var v FeatureVector
	col := 0
	for _, s := range parts {
		for field, f := range s.Fields() {
			v[col] = float64(f)
			if field == 0 {
				v[col] -= originX
			}
			col++
		}
	}
	return v
}
