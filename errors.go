package rentledger

import (
	"errors"
	"fmt"

	"github.com/xraph/rentledger/auth"
	"github.com/xraph/rentledger/gateway"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("rentledger: not found")
	ErrAlreadyExists = errors.New("rentledger: already exists")
	ErrInvalidInput  = errors.New("rentledger: invalid input")
	ErrUnauthorized  = errors.New("rentledger: unauthorized")
	ErrForbidden     = errors.New("rentledger: forbidden")

	// Rent errors
	ErrRentNotFound     = errors.New("rentledger: rent not found")
	ErrResidentNotFound = errors.New("rentledger: resident not found")
	ErrInvalidAmount    = errors.New("rentledger: invalid rent amount")

	// Payment errors
	ErrPaymentNotFound    = errors.New("rentledger: payment not found")
	ErrAlreadySettled     = errors.New("rentledger: rent already settled")
	ErrVerificationFailed = errors.New("rentledger: payment verification failed")
	ErrAmountMismatch     = errors.New("rentledger: payment amount does not match rent total")
	ErrOrderMismatch      = errors.New("rentledger: payment order does not belong to rent")

	// Gateway errors
	ErrGatewayUnavailable   = errors.New("rentledger: payment gateway unavailable")
	ErrGatewayNotConfigured = errors.New("rentledger: payment gateway not configured")

	// Store errors
	ErrStoreNotReady     = errors.New("rentledger: store not ready")
	ErrStoreClosed       = errors.New("rentledger: store is closed")
	ErrTransactionFailed = errors.New("rentledger: transaction failed")
	ErrMigrationFailed   = errors.New("rentledger: migration failed")
	ErrMalformedRecord   = errors.New("rentledger: malformed record")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("rentledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "rentledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("rentledger: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrorOrNil returns e when it holds errors and nil otherwise.
func (e MultiError) ErrorOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// OnlyMalformed reports whether err carries nothing but malformed-record
// errors, as returned next to the good rows of a list.
func OnlyMalformed(err error) ([]error, bool) {
	var multi MultiError
	if !errors.As(err, &multi) || !multi.HasErrors() {
		return nil, false
	}
	for _, e := range multi.Errors {
		if !errors.Is(e, ErrMalformedRecord) {
			return nil, false
		}
	}
	return multi.Errors, true
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRentNotFound) ||
		errors.Is(err, ErrResidentNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsForbidden returns true if the caller may not perform the operation.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsVerificationFailed returns true if a payment claim was rejected.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrOrderMismatch) ||
		errors.Is(err, gateway.ErrVerification)
}

// IsAlreadySettled returns true if the rent was already paid.
func IsAlreadySettled(err error) bool {
	return errors.Is(err, ErrAlreadySettled)
}

// IsGatewayUnavailable returns true if the payment gateway could not be reached.
func IsGatewayUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, ErrGatewayNotConfigured) ||
		errors.Is(err, gateway.ErrUnavailable)
}

// IsValidation returns true for malformed input.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		IsGatewayUnavailable(err)
}

// Kind classifies an error for callers that map errors to responses.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindGatewayUnavailable
	KindVerificationFailed
	KindAlreadySettled
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindGatewayUnavailable:
		return "gateway_unavailable"
	case KindVerificationFailed:
		return "verification_failed"
	case KindAlreadySettled:
		return "already_settled"
	case KindValidation:
		return "validation"
	}
	return "internal"
}

// KindOf returns the kind of err. Nil and unrecognized errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case IsAlreadySettled(err):
		return KindAlreadySettled
	case IsVerificationFailed(err):
		return KindVerificationFailed
	case IsGatewayUnavailable(err):
		return KindGatewayUnavailable
	case IsNotFound(err):
		return KindNotFound
	case IsForbidden(err):
		return KindForbidden
	case errors.Is(err, ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		return KindUnauthorized
	case IsValidation(err):
		return KindValidation
	}
	return KindInternal
}
