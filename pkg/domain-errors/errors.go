// Package domainerrors defines the closed set of error kinds the audit core
// surfaces to callers. Every failure leaving a service carries exactly one Code;
// transports translate codes with ToHTTPStatus and never inspect messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the kind of a domain error.
type Code string

const (
	// Identity layer
	CodeTransportRequired           Code = "transport_required"
	CodeCertificateRequired         Code = "certificate_required"
	CodePrematureCertificate        Code = "premature_certificate"
	CodeExpiredCertificate          Code = "expired_certificate"
	CodeUntrustedCertificate        Code = "untrusted_certificate"
	CodeProxyVerificationFailed     Code = "proxy_verification_failed"
	CodeFingerprintExtractionFailed Code = "fingerprint_extraction_failed"

	// Authorization layer
	CodeUnauthorized Code = "unauthorized"

	// Trail
	CodeValidation Code = "validation_error"
	CodeConflict   Code = "conflict"
	CodeNotFound   Code = "not_found"
	CodeInternal   Code = "internal_error"

	// Transport only: the request body could not be decoded at all.
	CodeBadRequest Code = "bad_request"
)

// Error is the single concrete error type produced by services.
type Error struct {
	Code    Code
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithDetails returns a copy of e carrying diagnostic details.
func (e *Error) WithDetails(details ...string) *Error {
	cp := *e
	cp.Details = append(append([]string{}, e.Details...), details...)
	return &cp
}

// CodeOf returns the code of the outermost domain error in the chain.
// Errors without a domain code are internal by definition.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// Is is kept as an alias of HasCode for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// DetailsOf returns the diagnostic details of a domain error, if any.
func DetailsOf(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}

// IsIdentityFailure reports whether the code belongs to the identity layer.
func (c Code) IsIdentityFailure() bool {
	switch c {
	case CodeTransportRequired, CodeCertificateRequired, CodePrematureCertificate,
		CodeExpiredCertificate, CodeUntrustedCertificate, CodeProxyVerificationFailed,
		CodeFingerprintExtractionFailed:
		return true
	}
	return false
}

// ToHTTPStatus maps every code to a status. The switch is exhaustive over the
// declared codes; anything else is treated as internal.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeTransportRequired, CodeCertificateRequired, CodePrematureCertificate,
		CodeExpiredCertificate, CodeUntrustedCertificate, CodeProxyVerificationFailed,
		CodeFingerprintExtractionFailed:
		return http.StatusUnauthorized
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
