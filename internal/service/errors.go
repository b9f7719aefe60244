package service

import (
	"errors"
	"strings"
)

var (
	// ErrQuotaExhausted is returned when the caller has no credits left.
	ErrQuotaExhausted = errors.New("quota exhausted")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrIdentityRejected means the identity provider refused the session id.
	ErrIdentityRejected = errors.New("identity exchange rejected")

	// ErrWebhookVerificationFailed means the webhook signature did not match.
	ErrWebhookVerificationFailed = errors.New("webhook verification failed")
	// ErrMalformedWebhook means a required field was missing or undecodable.
	ErrMalformedWebhook = errors.New("malformed webhook")
	// ErrDuplicateOrder means the order was already applied.
	ErrDuplicateOrder = errors.New("duplicate order")
	// ErrUnknownOrder means the payload carried no usable order id or buyer email.
	ErrUnknownOrder = errors.New("unknown order")
	// ErrUnknownBuyer means no account is registered under the buyer email.
	ErrUnknownBuyer = errors.New("unknown buyer")
	// ErrUnmatchedPackage means the paid price falls outside every package band.
	ErrUnmatchedPackage = errors.New("unmatched package")
)

// ValidationError lists the request fields that were missing or empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Is makes errors.Is(err, ErrValidation) hold for any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Acknowledged reports whether a webhook outcome should be confirmed to the
// payment provider as "success". Benign no-ops are acknowledged so the
// provider stops retrying; verification and storage failures are not.
func Acknowledged(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrDuplicateOrder),
		errors.Is(err, ErrUnknownOrder),
		errors.Is(err, ErrUnknownBuyer),
		errors.Is(err, ErrUnmatchedPackage):
		return true
	default:
		return false
	}
}
