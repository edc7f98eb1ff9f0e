package worker

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageLoad      Stage = "load"
	StageDecode    Stage = "decode"
	StageNormalize Stage = "normalize"
	StageDiff      Stage = "diff"
	StagePersist   Stage = "persist"
)

var (
	ErrIO                 = errors.New("io error")
	ErrDecode             = errors.New("decode error")
	ErrDimensionInvariant = errors.New("dimension invariant violated")
	ErrDiffCompute        = errors.New("diff computation failed")
)

// StageError is the reason a job aborted. errors.Is matches both its kind and its cause.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func stageError(stage Stage, kind error, err error) *StageError {
	return &StageError{
		Stage: stage,
		Kind:  kind,
		Err:   err,
	}
}
