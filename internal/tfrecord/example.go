package tfrecord

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Feature names written into each tf.train.Example.
const (
	FeatureState            = "state"
	FeatureTimeToTransition = "time_to_transition"
	FeaturePressedKeys      = "pressed_keys"
)

// Example is one training row: a normalized pose, its time-to-transition
// label and the Q, W, O, P key state as 0/1.
type Example struct {
	State            []float32
	TimeToTransition int64
	Keys             [4]int64
}

// tf.train.Example field numbers.
const (
	fieldExampleFeatures protowire.Number = 1 // Example.features
	fieldFeaturesEntry   protowire.Number = 1 // Features.feature map entry
	fieldEntryKey        protowire.Number = 1
	fieldEntryValue      protowire.Number = 2
	fieldFeatureBytes    protowire.Number = 1 // Feature.bytes_list
	fieldFeatureFloat    protowire.Number = 2 // Feature.float_list
	fieldFeatureInt64    protowire.Number = 3 // Feature.int64_list
	fieldListValue       protowire.Number = 1 // *List.value
)

// feature is a decoded tf.train.Feature. Exactly one list is meaningful,
// selected by kind.
type feature struct {
	kind   protowire.Number
	floats []float32
	ints   []int64
}

// MarshalExample encodes ex as a serialized tf.train.Example. Map entries
// are written in key order so output is deterministic.
func MarshalExample(ex Example) []byte {
	features := map[string]feature{
		FeatureState:            {kind: fieldFeatureFloat, floats: ex.State},
		FeatureTimeToTransition: {kind: fieldFeatureInt64, ints: []int64{ex.TimeToTransition}},
		FeaturePressedKeys:      {kind: fieldFeatureInt64, ints: ex.Keys[:]},
	}
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	var fs []byte
	for _, name := range names {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldEntryKey, protowire.BytesType)
		entry = protowire.AppendString(entry, name)
		entry = protowire.AppendTag(entry, fieldEntryValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, marshalFeature(features[name]))

		fs = protowire.AppendTag(fs, fieldFeaturesEntry, protowire.BytesType)
		fs = protowire.AppendBytes(fs, entry)
	}

	b := protowire.AppendTag(nil, fieldExampleFeatures, protowire.BytesType)
	return protowire.AppendBytes(b, fs)
}

func marshalFeature(f feature) []byte {
	var packed []byte
	switch f.kind {
	case fieldFeatureFloat:
		for _, v := range f.floats {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
	case fieldFeatureInt64:
		for _, v := range f.ints {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
	}
	var list []byte
	list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
	list = protowire.AppendBytes(list, packed)

	b := protowire.AppendTag(nil, f.kind, protowire.BytesType)
	return protowire.AppendBytes(b, list)
}

// UnmarshalExample decodes a tf.train.Example written by MarshalExample or
// by TensorFlow. Packed and unpacked list encodings are both accepted;
// unknown features are ignored.
func UnmarshalExample(b []byte) (Example, error) {
	features := map[string]feature{}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num != fieldExampleFeatures || typ != protowire.BytesType {
			return nil
		}
		return eachField(v, func(num protowire.Number, typ protowire.Type, entry []byte, _ uint64) error {
			if num != fieldFeaturesEntry || typ != protowire.BytesType {
				return nil
			}
			name, f, err := unmarshalEntry(entry)
			if err != nil {
				return err
			}
			features[name] = f
			return nil
		})
	})
	if err != nil {
		return Example{}, err
	}

	var ex Example
	state, ok := features[FeatureState]
	if !ok || state.kind != fieldFeatureFloat || len(state.floats) == 0 {
		return Example{}, fmt.Errorf("example has no values in float feature %q", FeatureState)
	}
	ex.State = state.floats

	ttt, ok := features[FeatureTimeToTransition]
	if !ok || ttt.kind != fieldFeatureInt64 || len(ttt.ints) != 1 {
		return Example{}, fmt.Errorf("example has no scalar int64 feature %q", FeatureTimeToTransition)
	}
	ex.TimeToTransition = ttt.ints[0]

	if keys, ok := features[FeaturePressedKeys]; ok {
		if keys.kind != fieldFeatureInt64 || len(keys.ints) != len(ex.Keys) {
			return Example{}, fmt.Errorf("feature %q must hold %d int64 values", FeaturePressedKeys, len(ex.Keys))
		}
		copy(ex.Keys[:], keys.ints)
	}
	return ex, nil
}

func unmarshalEntry(b []byte) (string, feature, error) {
	var name string
	var f feature
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		switch {
		case num == fieldEntryKey && typ == protowire.BytesType:
			name = string(v)
		case num == fieldEntryValue && typ == protowire.BytesType:
			var err error
			f, err = unmarshalFeature(v)
			return err
		}
		return nil
	})
	return name, f, err
}

func unmarshalFeature(b []byte) (feature, error) {
	var f feature
	err := eachField(b, func(num protowire.Number, typ protowire.Type, list []byte, _ uint64) error {
		if typ != protowire.BytesType || num < fieldFeatureBytes || num > fieldFeatureInt64 {
			return nil
		}
		f.kind = num
		return eachField(list, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
			if num != fieldListValue {
				return nil
			}
			switch {
			case f.kind == fieldFeatureFloat && typ == protowire.Fixed32Type:
				f.floats = append(f.floats, math.Float32frombits(uint32(scalar)))
			case f.kind == fieldFeatureFloat && typ == protowire.BytesType:
				if len(v)%4 != 0 {
					return fmt.Errorf("packed float list of %d bytes", len(v))
				}
				for len(v) > 0 {
					x, n := protowire.ConsumeFixed32(v)
					f.floats = append(f.floats, math.Float32frombits(x))
					v = v[n:]
				}
			case f.kind == fieldFeatureInt64 && typ == protowire.VarintType:
				f.ints = append(f.ints, int64(scalar))
			case f.kind == fieldFeatureInt64 && typ == protowire.BytesType:
				for len(v) > 0 {
					x, n := protowire.ConsumeVarint(v)
					if n < 0 {
						return protowire.ParseError(n)
					}
					f.ints = append(f.ints, int64(x))
					v = v[n:]
				}
			}
			return nil
		})
	})
	return f, err
}

// eachField visits the fields of a message. Bytes values arrive in v;
// varint and fixed values arrive in scalar.
func eachField(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var v []byte
		var scalar uint64
		switch typ {
		case protowire.VarintType:
			scalar, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var x uint32
			x, n = protowire.ConsumeFixed32(b)
			scalar = uint64(x)
		case protowire.Fixed64Type:
			scalar, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(num, typ, v, scalar); err != nil {
			return err
		}
	}
	return nil
}
