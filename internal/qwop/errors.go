package qwop

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks malformed or truncated binary input.
	ErrDecode = errors.New("decode error")
	// ErrMalformedRun marks a run whose pose and action lists are inconsistent.
	ErrMalformedRun = errors.New("malformed run")
	// ErrEmptyDataset is returned when no timesteps were found in the input.
	ErrEmptyDataset = errors.New("empty dataset")
)

// DecodeError reports where a DataSet buffer stopped being well formed.
type DecodeError struct {
	Path   string // empty when decoding an in-memory buffer
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("decode %s at byte %d: %v", e.Path, e.Offset, e.Err)
	}
	return fmt.Sprintf("decode at byte %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// MalformedRunError reports a structurally inconsistent run.
// Timestep and Part are -1 when not applicable.
type MalformedRunError struct {
	Path     string
	Run      int
	Timestep int
	Part     BodyPart
	Reason   string
}

func (e *MalformedRunError) Error() string {
	msg := fmt.Sprintf("malformed run %d", e.Run)
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Timestep >= 0 {
		msg += fmt.Sprintf(" timestep %d", e.Timestep)
	}
	if e.Part >= 0 {
		msg += fmt.Sprintf(" part %s", e.Part)
	}
	return msg + ": " + e.Reason
}

func (e *MalformedRunError) Is(target error) bool { return target == ErrMalformedRun }
