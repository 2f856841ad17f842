package models

import "time"

// Purpose scopes an OTP to the flow that requested it. Verification only
// succeeds against the same purpose the code was issued for.
type Purpose string

const (
	PurposeLogin         Purpose = "login"
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password_reset"
	PurposeVerification  Purpose = "verification"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeRegistration, PurposePasswordReset, PurposeVerification:
		return true
	}
	return false
}

type OTPRequest struct {
	OTPID     string    `json:"otp_id" dynamodbav:"OTPID"`
	Mobile    string    `json:"mobile" dynamodbav:"Mobile"`
	Purpose   Purpose   `json:"purpose" dynamodbav:"Purpose"`
	CodeHash  string    `json:"code_hash" dynamodbav:"CodeHash"`
	Consumed  bool      `json:"consumed" dynamodbav:"Consumed"`
	Attempts  int       `json:"attempts" dynamodbav:"Attempts"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"CreatedAt"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"ExpiresAt"`
}

func (r *OTPRequest) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Active reports whether the record can still be verified against.
func (r *OTPRequest) Active(now time.Time) bool {
	return !r.Consumed && !r.Expired(now)
}

// DeliveryStatus reports the outcome of handing a code to the SMS provider.
// A failed delivery never invalidates the stored OTP record.
type DeliveryStatus struct {
	Delivered bool   `json:"delivered"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
