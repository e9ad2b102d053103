package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for classification with errors.Is.
var (
	ErrObjectNotFound      = errors.New("object not found")
	ErrValueIsInvalid      = errors.New("value is invalid")
	ErrValueIsOutOfRange   = errors.New("value is out of range")
	ErrValueIsRequired     = errors.New("value is required")
	ErrStatusTransition    = errors.New("status transition is not allowed")
	ErrClaimConflict       = errors.New("offer is no longer available")
	ErrTransport           = errors.New("transport failure")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrPersistence         = errors.New("persistence failure")
)

// sanitize flattens multi-line values so error messages stay single-line in logs.
func sanitize(v any) string {
	return strings.ReplaceAll(strings.ReplaceAll(fmt.Sprintf("%v", v), "\n", " "), "\r", " ")
}

// ObjectNotFoundError indicates that a requested object does not exist.
type ObjectNotFoundError struct {
	ParamName string
	ID        any
	Cause     error
}

// NewObjectNotFoundError creates an ObjectNotFoundError without an underlying cause.
func NewObjectNotFoundError(paramName string, id any) *ObjectNotFoundError {
	return &ObjectNotFoundError{ParamName: paramName, ID: id}
}

// NewObjectNotFoundErrorWithCause creates an ObjectNotFoundError wrapping an underlying cause.
func NewObjectNotFoundErrorWithCause(paramName string, id any, cause error) *ObjectNotFoundError {
	return &ObjectNotFoundError{ParamName: paramName, ID: id, Cause: cause}
}

func (e *ObjectNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: param is: %s, ID is: %s (cause: %s)",
			ErrObjectNotFound, e.ParamName, sanitize(e.ID), e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrObjectNotFound, e.ID)
}

func (e *ObjectNotFoundError) Unwrap() error {
	return ErrObjectNotFound
}

// ValueIsInvalidError indicates that a supplied value failed validation.
type ValueIsInvalidError struct {
	ParamName string
	Cause     error
}

// NewValueIsInvalidError creates a ValueIsInvalidError without an underlying cause.
func NewValueIsInvalidError(paramName string) *ValueIsInvalidError {
	return &ValueIsInvalidError{ParamName: paramName}
}

// NewValueIsInvalidErrorWithCause creates a ValueIsInvalidError wrapping an underlying cause.
func NewValueIsInvalidErrorWithCause(paramName string, cause error) *ValueIsInvalidError {
	return &ValueIsInvalidError{ParamName: paramName, Cause: cause}
}

func (e *ValueIsInvalidError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %s)", ErrValueIsInvalid, e.ParamName, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrValueIsInvalid, e.ParamName)
}

func (e *ValueIsInvalidError) Unwrap() error {
	return ErrValueIsInvalid
}

// ValueIsOutOfRangeError indicates that a value lies outside its allowed bounds.
type ValueIsOutOfRangeError struct {
	ParamName string
	Value     any
	Min       any
	Max       any
	Cause     error
}

// NewValueIsOutOfRangeError creates a ValueIsOutOfRangeError without an underlying cause.
func NewValueIsOutOfRangeError(paramName string, value any, minValue any, maxValue any) *ValueIsOutOfRangeError {
	return &ValueIsOutOfRangeError{ParamName: paramName, Value: value, Min: minValue, Max: maxValue}
}

// NewValueIsOutOfRangeErrorWithCause creates a ValueIsOutOfRangeError wrapping an underlying cause.
func NewValueIsOutOfRangeErrorWithCause(
	paramName string, value any, minValue any, maxValue any, cause error,
) *ValueIsOutOfRangeError {
	return &ValueIsOutOfRangeError{ParamName: paramName, Value: value, Min: minValue, Max: maxValue, Cause: cause}
}

func (e *ValueIsOutOfRangeError) Error() string {
	msg := fmt.Sprintf("%s: %s is %s, min value is %v, max value is %v",
		ErrValueIsInvalid, sanitize(e.Value), e.ParamName, e.Min, e.Max)
	if e.Cause != nil {
		return fmt.Sprintf("%s (cause: %s)", msg, e.Cause)
	}
	return msg
}

func (e *ValueIsOutOfRangeError) Unwrap() error {
	return ErrValueIsOutOfRange
}

// ValueIsRequiredError indicates that a required value is missing.
type ValueIsRequiredError struct {
	ParamName string
	Cause     error
}

// NewValueIsRequiredError creates a ValueIsRequiredError without an underlying cause.
func NewValueIsRequiredError(paramName string) *ValueIsRequiredError {
	return &ValueIsRequiredError{ParamName: paramName}
}

// NewValueIsRequiredErrorWithCause creates a ValueIsRequiredError wrapping an underlying cause.
func NewValueIsRequiredErrorWithCause(paramName string, cause error) *ValueIsRequiredError {
	return &ValueIsRequiredError{ParamName: paramName, Cause: cause}
}

func (e *ValueIsRequiredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %s)", ErrValueIsRequired, e.ParamName, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrValueIsRequired, e.ParamName)
}

func (e *ValueIsRequiredError) Unwrap() error {
	return ErrValueIsRequired
}

// StatusTransitionError indicates a delivery status transition that the
// transition table forbids. It is local and recoverable: the current status
// is left untouched and no side effects have run.
type StatusTransitionError struct {
	From string
	To   string
}

// NewStatusTransitionError creates a StatusTransitionError for the given states.
func NewStatusTransitionError(from string, to string) *StatusTransitionError {
	return &StatusTransitionError{From: from, To: to}
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrStatusTransition, e.From, e.To)
}

func (e *StatusTransitionError) Unwrap() error {
	return ErrStatusTransition
}

// ClaimConflictError indicates that a conditional claim or release affected no
// row: the offer was taken by another driver or expired. This is an expected
// outcome of contention, not a defect.
type ClaimConflictError struct {
	DeliveryID string
}

// NewClaimConflictError creates a ClaimConflictError for the given delivery.
func NewClaimConflictError(deliveryID string) *ClaimConflictError {
	return &ClaimConflictError{DeliveryID: deliveryID}
}

func (e *ClaimConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrClaimConflict, e.DeliveryID)
}

func (e *ClaimConflictError) Unwrap() error {
	return ErrClaimConflict
}

// TransportError indicates a realtime publish or subscribe failure. It is
// handled by the circuit breaker's cooldown policy and never surfaces to
// the driver directly.
type TransportError struct {
	Topic string
	Cause error
}

// NewTransportError creates a TransportError for the given topic.
func NewTransportError(topic string, cause error) *TransportError {
	return &TransportError{Topic: topic, Cause: cause}
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: topic is: %s (cause: %s)", ErrTransport, e.Topic, e.Cause)
	}
	return fmt.Sprintf("%s: topic is: %s", ErrTransport, e.Topic)
}

func (e *TransportError) Unwrap() error {
	return ErrTransport
}

// PositionUnavailableError indicates the position source could not produce a
// sample. Callers proceed without coordinates; this error never blocks a
// status transition.
type PositionUnavailableError struct {
	Cause error
}

// NewPositionUnavailableError creates a PositionUnavailableError.
func NewPositionUnavailableError(cause error) *PositionUnavailableError {
	return &PositionUnavailableError{Cause: cause}
}

func (e *PositionUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (cause: %s)", ErrPositionUnavailable, e.Cause)
	}
	return ErrPositionUnavailable.Error()
}

func (e *PositionUnavailableError) Unwrap() error {
	return ErrPositionUnavailable
}

// PersistenceError indicates a failed write of state that must not be lost,
// such as a terminal delivery status or a critical-event checkpoint. Callers
// must surface and retry it.
type PersistenceError struct {
	Op    string
	Cause error
}

// NewPersistenceError creates a PersistenceError for the given operation.
func NewPersistenceError(op string, cause error) *PersistenceError {
	return &PersistenceError{Op: op, Cause: cause}
}

func (e *PersistenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %s)", ErrPersistence, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrPersistence, e.Op)
}

func (e *PersistenceError) Unwrap() error {
	return ErrPersistence
}
