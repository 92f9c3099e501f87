package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinels wrapped by adapters so the core can classify failures.
var (
	ErrTransientModel = errors.New("transient model error")
	ErrFatalModel     = errors.New("fatal model error")
	ErrFetch          = errors.New("fetch error")
	ErrSend           = errors.New("send error")
)

// ErrorKind classifies stage failures.
type ErrorKind string

const (
	KindTransientModel     ErrorKind = "transient_model"
	KindFatalModel         ErrorKind = "fatal_model"
	KindUnrecoverableParse ErrorKind = "unrecoverable_parse"
	KindFetch              ErrorKind = "fetch"
	KindSend               ErrorKind = "send"
	KindCancelled          ErrorKind = "cancelled"
	KindInvalidState       ErrorKind = "invalid_state"
)

// StageError is the only error type stages return to the orchestrator.
type StageError struct {
	Stage    string
	Kind     ErrorKind
	Attempts []string
	Err      error
}

func (e *StageError) Error() string {
	var b strings.Builder
	if e.Stage != "" {
		b.WriteString(e.Stage)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Attempts) > 0 {
		fmt.Fprintf(&b, " (%d raw attempts)", len(e.Attempts))
	}
	return b.String()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError builds a StageError, deriving the kind from err when kind is empty.
func NewStageError(stage string, kind ErrorKind, err error) *StageError {
	if kind == "" {
		kind = KindOf(err)
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// KindOf maps wrapped sentinels and context errors onto an ErrorKind.
func KindOf(err error) ErrorKind {
	var se *StageError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return se.Kind
	case IsCancellation(err):
		return KindCancelled
	case errors.Is(err, ErrTransientModel):
		return KindTransientModel
	case errors.Is(err, ErrFatalModel):
		return KindFatalModel
	case errors.Is(err, ErrFetch):
		return KindFetch
	case errors.Is(err, ErrSend):
		return KindSend
	default:
		return KindFatalModel
	}
}

// IsCancelled reports whether err is a StageError of kind cancelled or a context cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// WithStage tags err with the stage name unless it already carries one.
func WithStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		if se.Stage == "" {
			cp := *se
			cp.Stage = stage
			return &cp
		}
		return err
	}
	return NewStageError(stage, "", err)
}

// IsCancellation reports whether err stems from a cancelled or expired context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
