package model

import (
	"errors"

	"github.com/sprite-one/coprocessor/pkg/protocol"
)

// ModelError classifies failures in loading and parsing an .aif32
// file (spec.md §7). Every loading failure leaves the model in the
// empty state.
type ModelError struct {
	Op  string
	Err error
}

func (e *ModelError) Error() string { return "model: " + e.Op + ": " + e.Err.Error() }
func (e *ModelError) Unwrap() error { return e.Err }

func (e *ModelError) ErrStatus() protocol.Status {
	if errors.Is(e.Err, ErrNoModelLoaded) {
		return protocol.StatusNotFound
	}
	return protocol.StatusError
}

var (
	ErrBadMagic       = errors.New("bad magic")
	ErrBadVersion     = errors.New("unsupported version")
	ErrTruncated      = errors.New("weight blob truncated")
	ErrWeightsCRC     = errors.New("weights crc mismatch")
	ErrUnknownLayer   = errors.New("unknown layer type")
	ErrArenaOverflow  = errors.New("arena exhausted while loading")
	ErrNoModelLoaded  = errors.New("no model loaded")
)

// InferenceError classifies failures during a forward pass.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return "model: infer: " + e.Err.Error() }
func (e *InferenceError) Unwrap() error { return e.Err }

// ErrStatus maps a missing model to NotFound and every other
// inference failure to a generic Error.
func (e *InferenceError) ErrStatus() protocol.Status {
	if errors.Is(e.Err, ErrNoModelLoaded) {
		return protocol.StatusNotFound
	}
	return protocol.StatusError
}

var ErrShapeMismatch = errors.New("shape mismatch")

// TrainingError classifies failures during prepare_training/train_step.
type TrainingError struct {
	Err error
}

func (e *TrainingError) Error() string { return "model: train: " + e.Err.Error() }
func (e *TrainingError) Unwrap() error { return e.Err }

func (e *TrainingError) ErrStatus() protocol.Status {
	if errors.Is(e.Err, ErrNoModelLoaded) {
		return protocol.StatusNotFound
	}
	return protocol.StatusError
}

var (
	ErrOptimizerNotPrepared = errors.New("optimizer not prepared")
	ErrUnsupportedLayer     = errors.New("layer does not support backprop")
	ErrBadTrainingShape     = errors.New("input/target shape mismatch")
	ErrAlreadyTraining      = errors.New("finetune session already active")
)
