// Package errors provides the structured error taxonomy used by the costing engine.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON reports.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Error codes
const (
	ErrCodeInputValidation          = "INPUT_VALIDATION"
	ErrCodeBelowMinimum             = "BELOW_MINIMUM"
	ErrCodeUnsupportedConfiguration = "UNSUPPORTED_CONFIGURATION"
	ErrCodeNotRegistered            = "NOT_REGISTERED"
	ErrCodeUnitConversion           = "UNIT_CONVERSION"
)

// CostError is a structured error carrying the device it concerns.
type CostError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Device      string   `json:"device,omitempty"`
	Recoverable bool     `json:"recoverable"`
	cause       error
}

func (e *CostError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("[%s] %s: %s (device: %s)", e.Severity, e.Code, e.Message, e.Device)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

func (e *CostError) Unwrap() error {
	return e.cause
}

// WithDevice returns a copy of the error attributed to the named device.
func (e *CostError) WithDevice(name string) *CostError {
	cp := *e
	cp.Device = name
	return &cp
}

// WithCause attaches an underlying error reachable through errors.Is.
func (e *CostError) WithCause(err error) *CostError {
	e.cause = err
	return e
}

// NewInputValidationError reports a missing or invalid sizing input.
func NewInputValidationError(format string, args ...any) *CostError {
	return &CostError{
		Code:     ErrCodeInputValidation,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
	}
}

// NewBelowMinimumError reports a size under the validated range of a correlation.
func NewBelowMinimumError(category, subtype string, size, minimum float64, unit string) *CostError {
	return &CostError{
		Code: ErrCodeBelowMinimum,
		Message: fmt.Sprintf("%s/%s size %.4g %s is below the minimum %.4g %s",
			category, subtype, size, unit, minimum, unit),
		Severity:    SeverityError,
		Recoverable: true,
	}
}

// NewUnsupportedConfigurationError reports a category, subtype or material
// combination the engine cannot cost.
func NewUnsupportedConfigurationError(format string, args ...any) *CostError {
	return &CostError{
		Code:     ErrCodeUnsupportedConfiguration,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
	}
}

// NewNotRegisteredError reports a missing correlation.
func NewNotRegisteredError(category, subtype string, available []string) *CostError {
	msg := fmt.Sprintf("no correlation registered for %s/%s", category, subtype)
	if len(available) > 0 {
		msg += " (available: " + strings.Join(available, ", ") + ")"
	}
	return &CostError{
		Code:     ErrCodeNotRegistered,
		Message:  msg,
		Severity: SeverityError,
	}
}

// NewUnitConversionError reports an unusable unit symbol.
func NewUnitConversionError(family, unit string, cause error) *CostError {
	return &CostError{
		Code:     ErrCodeUnitConversion,
		Message:  fmt.Sprintf("cannot convert %s from unit %q", family, unit),
		Severity: SeverityError,
		cause:    cause,
	}
}

// Code extracts the error code, or "" when err is not a CostError.
func Code(err error) string {
	var ce *CostError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsInputValidation reports whether err is an input validation failure,
// including sizes below a correlation minimum.
func IsInputValidation(err error) bool {
	c := Code(err)
	return c == ErrCodeInputValidation || c == ErrCodeBelowMinimum
}

// IsBelowMinimum reports whether err is an under-limit size rejection.
func IsBelowMinimum(err error) bool {
	return Code(err) == ErrCodeBelowMinimum
}

// IsUnsupportedConfiguration reports whether err is an unsupported
// configuration, including unregistered correlations.
func IsUnsupportedConfiguration(err error) bool {
	c := Code(err)
	return c == ErrCodeUnsupportedConfiguration || c == ErrCodeNotRegistered
}

// IsUnitConversion reports whether err is a unit conversion failure.
func IsUnitConversion(err error) bool {
	return Code(err) == ErrCodeUnitConversion
}
