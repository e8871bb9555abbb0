package qwop

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyPartOrder(t *testing.T) {
	want := []string{"BODY", "HEAD", "RTHIGH", "LTHIGH", "RCALF", "LCALF",
		"RFOOT", "LFOOT", "RUARM", "LUARM", "RLARM", "LLARM"}
	parts := BodyParts()
	require.Len(t, parts, NumBodyParts)
	for i, p := range parts {
		assert.Equal(t, want[i], p.String())
	}
	assert.Equal(t, "BodyPart(12)", BodyPart(12).String())
}

func TestFeatureLabel(t *testing.T) {
	assert.Equal(t, "BODY.x", FeatureLabel(0))
	assert.Equal(t, "HEAD.x", FeatureLabel(6))
	assert.Equal(t, "RCALF.dy", FeatureLabel(4*StatesPerPart+4))
	assert.Equal(t, "LLARM.dth", FeatureLabel(FeatureWidth-1))
	assert.Equal(t, "col72", FeatureLabel(FeatureWidth))
}

func TestPoseSamplePresence(t *testing.T) {
	var p PoseSample
	missing, ok := p.Missing()
	require.True(t, ok)
	assert.Equal(t, Body, missing)

	p = p.WithPart(Body, PartState{X: 1})
	_, ok = p.Part(Body)
	assert.True(t, ok)
	missing, ok = p.Missing()
	require.True(t, ok)
	assert.Equal(t, Head, missing)

	full := NewPoseSample([NumBodyParts]PartState{})
	_, ok = full.Missing()
	assert.False(t, ok)

	_, ok = full.Part(BodyPart(-1))
	assert.False(t, ok)
}

func TestActionSampleString(t *testing.T) {
	a := ActionSample{W: true, O: true, Timesteps: 12}
	assert.Equal(t, "qWOp×12", a.String())
	assert.Equal(t, Keys{false, true, true, false}, a.Keys())
}

func TestErrorsMatchSentinels(t *testing.T) {
	var err error = &DecodeError{Path: "a.proto", Offset: 7, Err: errors.New("truncated")}
	wrapped := fmt.Errorf("load: %w", err)
	assert.ErrorIs(t, wrapped, ErrDecode)
	assert.Contains(t, err.Error(), "a.proto")
	assert.Contains(t, err.Error(), "byte 7")

	err = &MalformedRunError{Run: 3, Timestep: 10, Part: RCalf, Reason: "part missing"}
	assert.ErrorIs(t, fmt.Errorf("x: %w", err), ErrMalformedRun)
	assert.Equal(t, "malformed run 3 timestep 10 part RCALF: part missing", err.Error())

	err = &MalformedRunError{Path: "f", Run: 0, Timestep: -1, Part: -1, Reason: "bad"}
	assert.Equal(t, "f: malformed run 0: bad", err.Error())
	assert.NotErrorIs(t, err, ErrDecode)
}
