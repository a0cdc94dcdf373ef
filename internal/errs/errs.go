// SPDX-License-Identifier: MIT
// Package errs holds the error taxonomy shared by the analysis packages.
//
// A ConfigurationError is returned whenever sizing or cadence parameters
// cannot be satisfied. It always surfaces synchronously from the call that
// received the parameters and never leaves the callee partially configured.
//
// A PreconditionViolation is never returned: it is the panic value used when
// a producer breaks the sample delivery contract (mismatched channel lengths,
// oversized blocks). Those are programming errors, not runtime conditions.
package errs

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an invalid or unsatisfiable parameter.
type ConfigurationError struct {
	Param  string // Parameter name, e.g. "bands_per_octave".
	Value  any    // Offending value.
	Reason string // Human readable constraint.
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s=%v: %s", e.Param, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match any ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Config builds a ConfigurationError with a formatted reason.
func Config(param string, value any, format string, args ...any) error {
	return &ConfigurationError{
		Param:  param,
		Value:  value,
		Reason: fmt.Sprintf(format, args...),
	}
}

// PreconditionViolation is the panic value raised on contract breaches.
type PreconditionViolation struct {
	Op     string
	Reason string
}

func (p PreconditionViolation) Error() string {
	return fmt.Sprintf("precondition violated in %s: %s", p.Op, p.Reason)
}

// Precondition panics with a PreconditionViolation when ok is false.
func Precondition(ok bool, op, format string, args ...any) {
	if !ok {
		panic(PreconditionViolation{Op: op, Reason: fmt.Sprintf(format, args...)})
	}
}
