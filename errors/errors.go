/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when attempting to create a record that already exists
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConditionFailed is returned when a conditional write fails
	ErrConditionFailed = errors.New("condition check failed")

	// ErrUnknownQuery is returned when a filter or a naming convention references
	// an operation that was never registered
	ErrUnknownQuery = errors.New("unknown query")

	// ErrTransport is returned when the call to the backend itself failed
	ErrTransport = errors.New("transport error")

	// ErrBackend is returned when the backend answered with errors or without data
	ErrBackend = errors.New("data provider error")

	// ErrUnsupported is returned for verbs a resource handler does not implement
	ErrUnsupported = errors.New("operation not supported")
)

// NotFoundError represents an error when a record is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError represents an error when a record already exists
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConditionFailedError represents a failed conditional operation
type ConditionFailedError struct {
	Operation string
	Condition string
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("condition check failed for %s operation: %s", e.Operation, e.Condition)
}

func (e *ConditionFailedError) Is(target error) bool {
	return target == ErrConditionFailed
}

// UnknownQueryError is a configuration error: the registered operations and the
// UI configuration disagree. It is never retried.
type UnknownQueryError struct {
	Name string
}

func (e *UnknownQueryError) Error() string {
	return fmt.Sprintf("could not find query %q", e.Name)
}

func (e *UnknownQueryError) Is(target error) bool {
	return target == ErrUnknownQuery
}

// TransportError wraps a failed backend call. StatusCode is zero when the
// failure happened below HTTP (dial, timeout, decoding).
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResponseError is returned when a GraphQL response carries errors or no data.
type ResponseError struct {
	Operation string
	Messages  []string
}

func (e *ResponseError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s: %s: empty response", ErrBackend, e.Operation)
	}
	return fmt.Sprintf("%s: %s: %s", ErrBackend, e.Operation, strings.Join(e.Messages, "; "))
}

func (e *ResponseError) Is(target error) bool {
	return target == ErrBackend
}

// UnsupportedError names the verb and resource that cannot be served.
type UnsupportedError struct {
	Verb     string
	Resource string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported for resource %q", e.Verb, e.Resource)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(recordType, key string) error {
	return &NotFoundError{Type: recordType, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(recordType, key string) error {
	return &AlreadyExistsError{Type: recordType, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConditionFailedError creates a new ConditionFailedError
func NewConditionFailedError(operation, condition string) error {
	return &ConditionFailedError{Operation: operation, Condition: condition}
}

// NewUnknownQueryError creates a new UnknownQueryError
func NewUnknownQueryError(name string) error {
	return &UnknownQueryError{Name: name}
}

// NewTransportError creates a new TransportError
func NewTransportError(op string, statusCode int, err error) error {
	return &TransportError{Op: op, StatusCode: statusCode, Err: err}
}

// NewUnsupportedError creates a new UnsupportedError
func NewUnsupportedError(verb, resource string) error {
	return &UnsupportedError{Verb: verb, Resource: resource}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConditionFailed checks if an error is a condition failed error
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrConditionFailed)
}

// IsUnknownQuery checks if an error is a configuration error
func IsUnknownQuery(err error) bool {
	return errors.Is(err, ErrUnknownQuery)
}

// IsTransport checks if an error is a transport error
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsUnsupported checks if an error is an unsupported verb error
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// StatusCode returns the HTTP status carried by a TransportError in the chain,
// or zero.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// IsBadRequest reports a 400 answer. Admin endpoints use it to signal absence.
func IsBadRequest(err error) bool {
	return StatusCode(err) == http.StatusBadRequest
}

// IsAuthFailure reports a 401 or 403 answer, after which a host should drop
// the session.
func IsAuthFailure(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
