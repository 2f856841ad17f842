package service

import "errors"

// Reason is the machine-readable outcome code returned to callers when an
// issuance or verification request is rejected. Rejections are expected
// results, not faults; infrastructure failures are reported as plain errors.
type Reason string

const (
	ReasonRateLimited     Reason = "RATE_LIMITED"
	ReasonNotFound        Reason = "NOT_FOUND"
	ReasonMobileMismatch  Reason = "MOBILE_MISMATCH"
	ReasonAlreadyUsed     Reason = "ALREADY_USED"
	ReasonExpired         Reason = "EXPIRED"
	ReasonTooManyAttempts Reason = "TOO_MANY_ATTEMPTS"
	ReasonInvalidCode     Reason = "INVALID_CODE"
	ReasonDeliveryFailed  Reason = "DELIVERY_FAILED"
)

var (
	// ErrRateLimited is returned by Issue when the mobile number exceeded
	// its request window. No OTP record is created.
	ErrRateLimited = errors.New("too many OTP requests for this mobile")

	// ErrNotFound covers missing, expired-and-collected, consumed, and
	// superseded records alike so callers cannot probe for existence.
	ErrNotFound = errors.New("otp not found")

	// ErrAlreadyUsed is returned by the store when a conditional consume
	// loses the race, and by Verify for replayed codes.
	ErrAlreadyUsed = errors.New("otp already used")
)
