// Package densedata reads and writes the dense QWOP game-log format: a
// protobuf-encoded DataSet of runs (see proto/densedata.proto).
//
// The decoder walks the wire format directly with protowire in a single
// linear pass. Unknown fields are skipped; anything structurally invalid is
// reported as a *qwop.DecodeError carrying the byte offset.
package densedata

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/qwop"
)

// Field numbers from proto/densedata.proto.
const (
	fieldDataSetRuns protowire.Number = 1

	fieldRunState  protowire.Number = 1
	fieldRunAction protowire.Number = 2

	fieldVarX   protowire.Number = 1
	fieldVarY   protowire.Number = 2
	fieldVarTh  protowire.Number = 3
	fieldVarDX  protowire.Number = 4
	fieldVarDY  protowire.Number = 5
	fieldVarDTh protowire.Number = 6

	fieldActionQ         protowire.Number = 1
	fieldActionW         protowire.Number = 2
	fieldActionO         protowire.Number = 3
	fieldActionP         protowire.Number = 4
	fieldActionTimesteps protowire.Number = 5
)

// State messages number body parts 1..12 in qwop.BodyPart order.
func partField(b qwop.BodyPart) protowire.Number { return protowire.Number(b) + 1 }

// field is one decoded wire field. Only the member matching typ is set.
type field struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed32 uint32
	bytes   []byte
	offset  int // absolute offset of the value
}

// walk visits every field of the message encoded in b. base is the absolute
// offset of b within the top-level buffer.
func walk(b []byte, base int, fn func(f field) error) error {
	for off := 0; off < len(b); {
		num, typ, n := protowire.ConsumeTag(b[off:])
		if n < 0 {
			return &qwop.DecodeError{Offset: base + off, Err: protowire.ParseError(n)}
		}
		off += n
		f := field{num: num, typ: typ, offset: base + off}

		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b[off:])
		case protowire.Fixed32Type:
			f.fixed32, n = protowire.ConsumeFixed32(b[off:])
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b[off:])
		default:
			n = protowire.ConsumeFieldValue(num, typ, b[off:])
		}
		if n < 0 {
			return &qwop.DecodeError{Offset: base + off, Err: protowire.ParseError(n)}
		}
		off += n

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func wireTypeError(f field, want protowire.Type) error {
	return &qwop.DecodeError{
		Offset: f.offset,
		Err:    fmt.Errorf("field %d: wire type %d, want %d", f.num, f.typ, want),
	}
}

// Decode parses a serialized DataSet into its runs, in file order.
func Decode(buf []byte) ([]qwop.GameRun, error) {
	var runs []qwop.GameRun
	err := walk(buf, 0, func(f field) error {
		if f.num != fieldDataSetRuns {
			return nil
		}
		if f.typ != protowire.BytesType {
			return wireTypeError(f, protowire.BytesType)
		}
		run, err := decodeRun(f.bytes, f.offset)
		if err != nil {
			return err
		}
		runs = append(runs, run)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// DecodeFile reads and decodes the DataSet stored at path.
func DecodeFile(fsys fsutil.FileSystem, path string) ([]qwop.GameRun, error) {
	buf, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	runs, err := Decode(buf)
	if err != nil {
		var de *qwop.DecodeError
		if errors.As(err, &de) {
			de.Path = path
		}
		return nil, err
	}
	return runs, nil
}

func decodeRun(b []byte, base int) (qwop.GameRun, error) {
	var run qwop.GameRun
	err := walk(b, base, func(f field) error {
		switch f.num {
		case fieldRunState:
			if f.typ != protowire.BytesType {
				return wireTypeError(f, protowire.BytesType)
			}
			pose, err := decodePose(f.bytes, f.offset)
			if err != nil {
				return err
			}
			run.Poses = append(run.Poses, pose)
		case fieldRunAction:
			if f.typ != protowire.BytesType {
				return wireTypeError(f, protowire.BytesType)
			}
			action, err := decodeAction(f.bytes, f.offset)
			if err != nil {
				return err
			}
			run.Actions = append(run.Actions, action)
		}
		return nil
	})
	return run, err
}

func decodePose(b []byte, base int) (qwop.PoseSample, error) {
	var pose qwop.PoseSample
	err := walk(b, base, func(f field) error {
		if f.num < 1 || int(f.num) > qwop.NumBodyParts {
			return nil
		}
		if f.typ != protowire.BytesType {
			return wireTypeError(f, protowire.BytesType)
		}
		part := qwop.BodyPart(f.num - 1)
		// A part seen twice merges into the earlier value.
		prev, _ := pose.Part(part)
		s, err := decodePartState(f.bytes, f.offset, prev)
		if err != nil {
			return err
		}
		pose = pose.WithPart(part, s)
		return nil
	})
	return pose, err
}

// decodePartState decodes b on top of s. Fields absent from b keep their
// value in s.
func decodePartState(b []byte, base int, s qwop.PartState) (qwop.PartState, error) {
	err := walk(b, base, func(f field) error {
		var dst *float32
		switch f.num {
		case fieldVarX:
			dst = &s.X
		case fieldVarY:
			dst = &s.Y
		case fieldVarTh:
			dst = &s.Th
		case fieldVarDX:
			dst = &s.DX
		case fieldVarDY:
			dst = &s.DY
		case fieldVarDTh:
			dst = &s.DTh
		default:
			return nil
		}
		if f.typ != protowire.Fixed32Type {
			return wireTypeError(f, protowire.Fixed32Type)
		}
		*dst = math.Float32frombits(f.fixed32)
		return nil
	})
	return s, err
}

func decodeAction(b []byte, base int) (qwop.ActionSample, error) {
	var a qwop.ActionSample
	err := walk(b, base, func(f field) error {
		if f.num < fieldActionQ || f.num > fieldActionTimesteps {
			return nil
		}
		if f.typ != protowire.VarintType {
			return wireTypeError(f, protowire.VarintType)
		}
		switch f.num {
		case fieldActionQ:
			a.Q = protowire.DecodeBool(f.varint)
		case fieldActionW:
			a.W = protowire.DecodeBool(f.varint)
		case fieldActionO:
			a.O = protowire.DecodeBool(f.varint)
		case fieldActionP:
			a.P = protowire.DecodeBool(f.varint)
		case fieldActionTimesteps:
			a.Timesteps = int32(f.varint)
		}
		return nil
	})
	return a, err
}
