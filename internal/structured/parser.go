// Package structured recovers typed values from semi-structured model output.
//
// Parsing is strict first; the only repair attempted is escaping double quotes
// embedded in string values. Anything else is reported as a ParseError rather
// than guessed at.
package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Phase identifies where parsing gave up.
type Phase string

const (
	PhaseSpan   Phase = "span"
	PhaseStrict Phase = "strict"
	PhaseRepair Phase = "repair"
)

// ErrNoJSON is reported when raw text holds no object or array.
var ErrNoJSON = errors.New("no JSON value found")

// Validator is implemented by target shapes that enforce required fields and ranges.
type Validator interface {
	Validate() error
}

// ParseError carries the raw text and the reason parsing failed.
type ParseError struct {
	Raw   string
	Phase Phase
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse structured output (%s): %v", e.Phase, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Result describes how a successful parse was obtained.
type Result struct {
	Repaired bool
}

// Parse decodes raw into T, applying at most one quote-escaping repair pass.
func Parse[T any](raw string) (T, error) {
	v, _, err := ParseWithResult[T](raw)
	return v, err
}

// ParseWithResult is Parse but also reports whether the repair pass was needed.
func ParseWithResult[T any](raw string) (T, Result, error) {
	var zero T

	span, ok := ExtractSpan(raw)
	if !ok {
		return zero, Result{}, &ParseError{Raw: raw, Phase: PhaseSpan, Err: ErrNoJSON}
	}

	v, strictErr := decode[T](span)
	if strictErr == nil {
		return v, Result{}, nil
	}

	repaired, changed := EscapeInnerQuotes(span)
	if !changed {
		return zero, Result{}, &ParseError{Raw: raw, Phase: PhaseStrict, Err: strictErr}
	}
	if !onlyEscapesAdded(span, repaired) {
		return zero, Result{}, &ParseError{Raw: raw, Phase: PhaseRepair, Err: errors.New("repair altered structure")}
	}

	v, repairErr := decode[T](repaired)
	if repairErr != nil {
		return zero, Result{}, &ParseError{
			Raw:   raw,
			Phase: PhaseRepair,
			Err:   fmt.Errorf("%w (strict: %v)", repairErr, strictErr),
		}
	}
	return v, Result{Repaired: true}, nil
}

func decode[T any](span string) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader([]byte(span)))
	if err := dec.Decode(&v); err != nil {
		var zero T
		return zero, err
	}
	if dec.More() {
		var zero T
		return zero, errors.New("trailing data after JSON value")
	}
	if err := validate(&v); err != nil {
		var zero T
		return zero, fmt.Errorf("validate: %w", err)
	}
	return v, nil
}

func validate[T any](v *T) error {
	if val, ok := any(v).(Validator); ok {
		return val.Validate()
	}
	if val, ok := any(*v).(Validator); ok {
		return val.Validate()
	}
	return nil
}

// CheckScore enforces the [0, 1] range used by every score-bearing shape.
func CheckScore(name string, score *float64) error {
	if score == nil {
		return fmt.Errorf("missing %s", name)
	}
	if *score < 0 || *score > 1 {
		return fmt.Errorf("%s %.3f outside [0, 1]", name, *score)
	}
	return nil
}
