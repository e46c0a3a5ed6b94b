package apierrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind is the machine-readable error class reported in API error bodies.
type Kind string

// Facilitator-side kinds.
const (
	KindInvalidTransaction Kind = "InvalidTransaction"
	KindVerificationFailed Kind = "VerificationFailed"
	KindSubmissionFailed   Kind = "SubmissionFailed"
	KindPolkadotRPCError   Kind = "PolkadotRpcError"
)

// Resource-server-side kinds.
const (
	KindPaymentRequired           Kind = "PaymentRequired"
	KindPaymentVerificationFailed Kind = "PaymentVerificationFailed"
	KindPaymentSettlementFailed   Kind = "PaymentSettlementFailed"
	KindFacilitatorError          Kind = "FacilitatorError"
	KindInvalidPaymentHeader      Kind = "InvalidPaymentHeader"
)

// Kinds shared by both services.
const (
	KindConfigError   Kind = "ConfigError"
	KindInternalError Kind = "InternalError"
)

// APIError is a typed error rendered to clients as {"error": kind, "message": msg}.
type APIError struct {
	Kind    Kind
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// New creates an APIError of the given kind.
func New(kind Kind, format string, args ...interface{}) *APIError {
	return &APIError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransactionf(format string, args ...interface{}) *APIError {
	return New(KindInvalidTransaction, format, args...)
}

func VerificationFailedf(format string, args ...interface{}) *APIError {
	return New(KindVerificationFailed, format, args...)
}

func SubmissionFailedf(format string, args ...interface{}) *APIError {
	return New(KindSubmissionFailed, format, args...)
}

func PolkadotRPCf(format string, args ...interface{}) *APIError {
	return New(KindPolkadotRPCError, format, args...)
}

func PaymentVerificationFailedf(format string, args ...interface{}) *APIError {
	return New(KindPaymentVerificationFailed, format, args...)
}

func PaymentSettlementFailedf(format string, args ...interface{}) *APIError {
	return New(KindPaymentSettlementFailed, format, args...)
}

func FacilitatorErrorf(format string, args ...interface{}) *APIError {
	return New(KindFacilitatorError, format, args...)
}

func InvalidPaymentHeaderf(format string, args ...interface{}) *APIError {
	return New(KindInvalidPaymentHeader, format, args...)
}

func Configf(format string, args ...interface{}) *APIError {
	return New(KindConfigError, format, args...)
}

func Internalf(format string, args ...interface{}) *APIError {
	return New(KindInternalError, format, args...)
}

// HTTPStatus maps an error kind to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidTransaction, KindInvalidPaymentHeader:
		return http.StatusBadRequest
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	case KindVerificationFailed, KindPaymentVerificationFailed:
		return http.StatusUnprocessableEntity
	case KindSubmissionFailed, KindPolkadotRPCError,
		KindPaymentSettlementFailed, KindFacilitatorError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the kind from an error chain, defaulting to InternalError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternalError
}

// WriteJSON renders err as the standard {"error", "message"} body with the
// status code of its kind. Untyped errors are reported as InternalError.
func WriteJSON(c *gin.Context, err error) {
	kind := KindOf(err)
	c.JSON(HTTPStatus(kind), gin.H{
		"error":   string(kind),
		"message": err.Error(),
	})
}
