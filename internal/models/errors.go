package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure the pipeline can produce.
type Kind string

const (
	KindBadRequest        Kind = "BadRequest"
	KindPayloadTooLarge   Kind = "PayloadTooLarge"
	KindMethodNotAllowed  Kind = "MethodNotAllowed"
	KindMissingCredential Kind = "MissingCredential"
	KindConversion        Kind = "ConversionError"
	KindExtraction        Kind = "ExtractionError"
	KindSchemaMismatch    Kind = "SchemaMismatchError"
	KindInternal          Kind = "InternalError"
)

// MaxRawOutput caps the model output echoed back in error payloads.
const MaxRawOutput = 2000

// Error is a classified pipeline failure.
type Error struct {
	Kind      Kind
	Message   string
	Cause     error
	RawOutput string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a classified error.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func BadRequest(message string) *Error { return NewError(KindBadRequest, message, nil) }
func PayloadTooLarge(message string) *Error { return NewError(KindPayloadTooLarge, message, nil) }
func MissingCredential(message string) *Error { return NewError(KindMissingCredential, message, nil) }

func ConversionError(message string, cause error) *Error {
	return NewError(KindConversion, message, cause)
}

func ExtractionError(message string, cause error) *Error {
	return NewError(KindExtraction, message, cause)
}

// SchemaMismatch keeps the offending model output, capped to MaxRawOutput.
func SchemaMismatch(message, raw string, cause error) *Error {
	e := NewError(KindSchemaMismatch, message, cause)
	e.RawOutput = Truncate(raw, MaxRawOutput)
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a failure to the status code returned by the gateway.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindConversion, KindExtraction, KindSchemaMismatch:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorEnvelope is the failure body returned instead of an ExtractionResult.
type ErrorEnvelope struct {
	Success       bool   `json:"success"`
	Error         string `json:"error"`
	Kind          Kind   `json:"kind"`
	Details       string `json:"details,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	LeaseUploadID string `json:"leaseUploadId,omitempty"`
	RawOutput     string `json:"rawOutput,omitempty"`
}

// NewErrorEnvelope renders err for the caller.
func NewErrorEnvelope(err error, correlationID, leaseUploadID string) *ErrorEnvelope {
	env := &ErrorEnvelope{
		Success:       false,
		Kind:          KindOf(err),
		CorrelationID: correlationID,
		LeaseUploadID: leaseUploadID,
	}
	var e *Error
	if errors.As(err, &e) {
		env.Error = e.Message
		env.RawOutput = e.RawOutput
		if e.Cause != nil {
			env.Details = e.Cause.Error()
		}
	} else {
		env.Error = "Failed to process lease"
		env.Details = err.Error()
	}
	return env
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
