package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrValidation
	ErrDuplicateKey
	ErrDecryption
	ErrSimulation
	ErrUnauthorized
	ErrInternal
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

func DuplicateKey(message string, err error) *AppError {
	return &AppError{
		Code:    ErrDuplicateKey,
		Message: message,
		Err:     err,
	}
}

func Decryption(err error) *AppError {
	return &AppError{
		Code:    ErrDecryption,
		Message: "cannot decrypt stored data",
		Err:     err,
	}
}

func Simulation(err error) *AppError {
	return &AppError{
		Code:    ErrSimulation,
		Message: "simulation failed",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal error",
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from err, unwrapping as needed.
// Errors that are not AppErrors report ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

func IsNotFound(err error) bool     { return CodeOf(err) == ErrNotFound }
func IsValidation(err error) bool   { return CodeOf(err) == ErrValidation }
func IsDuplicateKey(err error) bool { return CodeOf(err) == ErrDuplicateKey }
func IsDecryption(err error) bool   { return CodeOf(err) == ErrDecryption }
