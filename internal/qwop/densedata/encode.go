package densedata

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/qwop.data/internal/qwop"
)

// Encode serializes runs as a DataSet. Zero-valued scalars are omitted as
// proto3 does; absent body parts are omitted entirely.
func Encode(runs []qwop.GameRun) []byte {
	var b []byte
	for _, run := range runs {
		b = protowire.AppendTag(b, fieldDataSetRuns, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeRun(run))
	}
	return b
}

func encodeRun(run qwop.GameRun) []byte {
	var b []byte
	for _, pose := range run.Poses {
		b = protowire.AppendTag(b, fieldRunState, protowire.BytesType)
		b = protowire.AppendBytes(b, encodePose(pose))
	}
	for _, a := range run.Actions {
		b = protowire.AppendTag(b, fieldRunAction, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeAction(a))
	}
	return b
}

func encodePose(pose qwop.PoseSample) []byte {
	var b []byte
	for _, part := range qwop.BodyParts() {
		s, ok := pose.Part(part)
		if !ok {
			continue
		}
		b = protowire.AppendTag(b, partField(part), protowire.BytesType)
		b = protowire.AppendBytes(b, encodePartState(s))
	}
	return b
}

func encodePartState(s qwop.PartState) []byte {
	var b []byte
	nums := [...]protowire.Number{fieldVarX, fieldVarY, fieldVarTh, fieldVarDX, fieldVarDY, fieldVarDTh}
	for i, v := range s.Fields() {
		if v == 0 && !math.Signbit(float64(v)) {
			continue
		}
		b = protowire.AppendTag(b, nums[i], protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	return b
}

func encodeAction(a qwop.ActionSample) []byte {
	var b []byte
	for i, down := range a.Keys() {
		if !down {
			continue
		}
		b = protowire.AppendTag(b, fieldActionQ+protowire.Number(i), protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if a.Timesteps != 0 {
		b = protowire.AppendTag(b, fieldActionTimesteps, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(a.Timesteps)))
	}
	return b
}
