// Package hydra structured error types for better error handling
package hydra

import (
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Invalid argument errors
	ErrTypeInvalidArg ErrorType = iota
	// Operand shape mismatch errors
	ErrTypeDimension
	// Memory errors
	ErrTypeMemory
	// Device errors (driver, context, transfer)
	ErrTypeDevice
	// Numerical errors (singular matrix, bad transform length)
	ErrTypeNumerical
	// Execution errors
	ErrTypeExecution
	// Not implemented errors
	ErrTypeNotImplemented
)

// HydraError represents a structured error with context
type HydraError struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *HydraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hydra %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("hydra %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *HydraError) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeDimension:
		return "Dimension"
	case ErrTypeMemory:
		return "Memory"
	case ErrTypeDevice:
		return "Device"
	case ErrTypeNumerical:
		return "Numerical"
	case ErrTypeExecution:
		return "Execution"
	case ErrTypeNotImplemented:
		return "NotImplemented"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &HydraError{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// NewDimensionError creates an operand shape mismatch error.
// Dimension errors are rejected synchronously, before any work is scheduled.
func NewDimensionError(op string, want, got int) error {
	return &HydraError{
		Type:    ErrTypeDimension,
		Op:      op,
		Message: fmt.Sprintf("dimension mismatch: want %d, got %d", want, got),
	}
}

// NewMemoryError creates a memory-related error
func NewMemoryError(op string, message string, err error) error {
	return &HydraError{
		Type:    ErrTypeMemory,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewDeviceError creates a device error
func NewDeviceError(op string, message string, err error) error {
	return &HydraError{
		Type:    ErrTypeDevice,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewNumericalError creates a numerical error
func NewNumericalError(op string, message string) error {
	return &HydraError{
		Type:    ErrTypeNumerical,
		Op:      op,
		Message: message,
	}
}

// NewExecutionError creates an execution error
func NewExecutionError(op string, message string, err error) error {
	return &HydraError{
		Type:    ErrTypeExecution,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Common pre-defined errors

var (
	// ErrInvalidSize indicates an invalid size parameter
	ErrInvalidSize = NewInvalidArgError("Alloc", "size must be positive")

	// ErrEngineClosed indicates an operation on a closed engine
	ErrEngineClosed = NewExecutionError("Engine", "engine is closed", nil)

	// ErrUnknownBackend indicates a backend tag outside the closed set
	ErrUnknownBackend = NewInvalidArgError("New", "unknown backend")
)

// IsDimensionError checks if an error is an operand shape mismatch
func IsDimensionError(err error) bool {
	if e, ok := err.(*HydraError); ok {
		return e.Type == ErrTypeDimension
	}
	return false
}

// IsDeviceError checks if an error is a device error
func IsDeviceError(err error) bool {
	if e, ok := err.(*HydraError); ok {
		return e.Type == ErrTypeDevice
	}
	return false
}

// IsNumericalError checks if an error is a numerical error
func IsNumericalError(err error) bool {
	if e, ok := err.(*HydraError); ok {
		return e.Type == ErrTypeNumerical
	}
	return false
}

// IsMemoryError checks if an error is a memory error
func IsMemoryError(err error) bool {
	if e, ok := err.(*HydraError); ok {
		return e.Type == ErrTypeMemory
	}
	return false
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	if e, ok := err.(*HydraError); ok {
		return e.Type == ErrTypeInvalidArg
	}
	return false
}

// IsExecutionError checks if an error is a runtime execution failure
func IsExecutionError(err error) bool {
	if e, ok := err.(*HydraError); ok {
		return e.Type == ErrTypeExecution
	}
	return false
}
