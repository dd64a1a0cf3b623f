package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DataUnavailableError reports that history for a single ticker could not be
// fetched or is too short for the requested window. It is scoped to the
// ticker: callers collect these as warnings and only escalate when every
// position in a portfolio fails.
type DataUnavailableError struct {
	Ticker string
	Reason string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable for %s: %s", e.Ticker, e.Reason)
}

// NumericalError reports a computation that could not produce a result:
// a singular covariance matrix that ridge regularization could not repair,
// a rank-deficient regression design, or an optimizer that failed to make
// progress.
type NumericalError struct {
	Op     string
	Reason string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// InfeasibleError reports a constraint set with no solution. Conflicts lists
// the offending constraints; they are reported, never silently relaxed.
type InfeasibleError struct {
	Conflicts []string
}

func (e *InfeasibleError) Error() string {
	if len(e.Conflicts) == 0 {
		return "infeasible constraints"
	}
	return "infeasible constraints: " + strings.Join(e.Conflicts, "; ")
}

// ConfigurationError reports a malformed spec (weights, limits, proxies,
// scenario definitions). Validation runs before any computation starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// IsDataUnavailable reports whether err wraps a DataUnavailableError.
func IsDataUnavailable(err error) bool {
	var e *DataUnavailableError
	return errors.As(err, &e)
}

// IsNumerical reports whether err wraps a NumericalError.
func IsNumerical(err error) bool {
	var e *NumericalError
	return errors.As(err, &e)
}

// IsInfeasible reports whether err wraps an InfeasibleError.
func IsInfeasible(err error) bool {
	var e *InfeasibleError
	return errors.As(err, &e)
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}
