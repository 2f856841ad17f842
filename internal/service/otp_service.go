package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduotp/eduotp/internal/config"
	"github.com/eduotp/eduotp/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// OTPStore persists OTP records. Consume must be a conditional update that
// succeeds for exactly one caller per record, and IncrementAttempts must be
// an atomic counter update.
type OTPStore interface {
	Put(ctx context.Context, rec *models.OTPRequest) error
	GetByID(ctx context.Context, otpID string) (*models.OTPRequest, error)
	DeleteActive(ctx context.Context, mobile string, purpose models.Purpose) error
	IncrementAttempts(ctx context.Context, otpID string) (int, error)
	Consume(ctx context.Context, otpID string) error
	Invalidate(ctx context.Context, otpID string) error
}

// RateLimiter caps issuance per mobile number. Allow records the attempt on
// every call; a false return is a rejection, not an error.
type RateLimiter interface {
	Allow(ctx context.Context, mobile string) (bool, error)
}

// DeliveryGateway hands a rendered message to the SMS provider and returns
// the provider's message ID.
type DeliveryGateway interface {
	Send(ctx context.Context, mobile, message, senderID string) (string, error)
}

type IssueResult struct {
	OTP *models.OTPRequest
	// Code is the plaintext OTP. It is handed to the delivery gateway and
	// must never be returned to the HTTP caller.
	Code     string
	Delivery models.DeliveryStatus
}

type VerifyResult struct {
	OK         bool
	Reason     Reason
	VerifiedAt time.Time
	// Token is a signed verification proof, present on success when proof
	// tokens are configured.
	Token string
}

type OTPService struct {
	store   OTPStore
	limiter RateLimiter
	gateway DeliveryGateway
	tokens  *TokenService
	otpCfg  *config.OTPConfig
	smsCfg  *config.SMSConfig
	logger  *logrus.Logger
	now     func() time.Time
}

// NewOTPService wires the OTP workflow. tokens may be nil, in which case
// verification responses carry no proof token.
func NewOTPService(
	store OTPStore,
	limiter RateLimiter,
	gateway DeliveryGateway,
	tokens *TokenService,
	otpCfg *config.OTPConfig,
	smsCfg *config.SMSConfig,
	logger *logrus.Logger,
) *OTPService {
	return &OTPService{
		store:   store,
		limiter: limiter,
		gateway: gateway,
		tokens:  tokens,
		otpCfg:  otpCfg,
		smsCfg:  smsCfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Issue creates a new OTP for (mobile, purpose), superseding any active
// record for the same pair, and hands the code to the delivery gateway.
// Delivery failure is surfaced in the result but never rolls back the stored
// record. Returns ErrRateLimited when the mobile exceeded its window; no
// record is created in that case.
func (s *OTPService) Issue(ctx context.Context, mobile string, purpose models.Purpose, senderID string) (*IssueResult, error) {
	allowed, err := s.limiter.Allow(ctx, mobile)
	if err != nil {
		// Fail open: an unreachable limiter should not take down issuance.
		s.logger.WithError(err).Warn("Rate limiter check failed, allowing request")
		allowed = true
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	// A new request supersedes the prior active record for this pair.
	if err := s.store.DeleteActive(ctx, mobile, purpose); err != nil {
		return nil, fmt.Errorf("failed to supersede active OTP: %w", err)
	}

	code, err := GenerateCode(s.otpCfg.Length)
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP code: %w", err)
	}

	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash OTP code: %w", err)
	}

	now := s.now()
	rec := &models.OTPRequest{
		OTPID:     uuid.NewString(),
		Mobile:    mobile,
		Purpose:   purpose,
		CodeHash:  string(codeHash),
		CreatedAt: now,
		ExpiresAt: now.Add(s.otpCfg.Expiry),
	}

	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store OTP: %w", err)
	}

	result := &IssueResult{OTP: rec, Code: code}
	result.Delivery = s.deliver(ctx, mobile, purpose, code, senderID)

	s.logger.WithFields(logrus.Fields{
		"otp_id":    rec.OTPID,
		"mobile":    mobile,
		"purpose":   purpose,
		"delivered": result.Delivery.Delivered,
	}).Info("OTP issued")

	return result, nil
}

// deliver sends the code with a bounded timeout. The OTP state is already
// committed; any provider error is reported back, not acted on.
func (s *OTPService) deliver(ctx context.Context, mobile string, purpose models.Purpose, code, senderID string) models.DeliveryStatus {
	if senderID == "" {
		senderID = s.smsCfg.SenderID
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.smsCfg.DeliveryTimeout)
	defer cancel()

	message := SMSMessage(purpose, code, s.otpCfg.Expiry)
	messageID, err := s.gateway.Send(sendCtx, mobile, message, senderID)
	if err != nil {
		s.logger.WithError(err).WithField("mobile", mobile).Warn("OTP delivery failed")
		return models.DeliveryStatus{Delivered: false, Error: err.Error()}
	}

	return models.DeliveryStatus{Delivered: true, MessageID: messageID}
}

// Verify validates a submitted code against the stored record and consumes
// it on success. Domain rejections are reported in the result's Reason; a
// non-nil error means the store itself failed.
func (s *OTPService) Verify(ctx context.Context, otpID, code, mobile string) (*VerifyResult, error) {
	rec, err := s.store.GetByID(ctx, otpID)
	if errors.Is(err, ErrNotFound) {
		return &VerifyResult{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OTP: %w", err)
	}

	// Mobile mismatch does not count as an attempt against the record.
	if rec.Mobile != mobile {
		return &VerifyResult{Reason: ReasonMobileMismatch}, nil
	}

	if rec.Consumed {
		return &VerifyResult{Reason: ReasonAlreadyUsed}, nil
	}

	if rec.Expired(s.now()) {
		return &VerifyResult{Reason: ReasonExpired}, nil
	}

	attempts, err := s.store.IncrementAttempts(ctx, otpID)
	if errors.Is(err, ErrNotFound) {
		return &VerifyResult{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}

	if attempts > s.otpCfg.MaxAttempts {
		// Cap crossed: block the record for good, correct code or not.
		if err := s.store.Invalidate(ctx, otpID); err != nil {
			s.logger.WithError(err).WithField("otp_id", otpID).Error("Failed to invalidate OTP after attempt cap")
		}
		return &VerifyResult{Reason: ReasonTooManyAttempts}, nil
	}

	// bcrypt comparison is constant-time with respect to the submitted code.
	if bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)) != nil {
		return &VerifyResult{Reason: ReasonInvalidCode}, nil
	}

	switch err := s.store.Consume(ctx, otpID); {
	case err == nil:
	case errors.Is(err, ErrAlreadyUsed):
		// A concurrent verification won the conditional update.
		return &VerifyResult{Reason: ReasonAlreadyUsed}, nil
	case errors.Is(err, ErrNotFound):
		return &VerifyResult{Reason: ReasonNotFound}, nil
	default:
		return nil, fmt.Errorf("failed to consume OTP: %w", err)
	}

	result := &VerifyResult{OK: true, VerifiedAt: s.now()}

	if s.tokens != nil {
		token, err := s.tokens.GenerateVerificationToken(rec.Mobile, rec.Purpose)
		if err != nil {
			// The verification itself stands; only the proof is missing.
			s.logger.WithError(err).Error("Failed to sign verification token")
		} else {
			result.Token = token
		}
	}

	s.logger.WithFields(logrus.Fields{
		"otp_id": otpID,
		"mobile": mobile,
	}).Info("OTP verified")

	return result, nil
}

// GetActive returns the record for otpID if it is still verifiable.
// Missing, expired, consumed, and superseded records are all reported as
// ErrNotFound so the endpoint cannot be used to probe for existence.
func (s *OTPService) GetActive(ctx context.Context, otpID string) (*models.OTPRequest, error) {
	rec, err := s.store.GetByID(ctx, otpID)
	if err != nil {
		return nil, err
	}

	if !rec.Active(s.now()) {
		return nil, ErrNotFound
	}

	return rec, nil
}
