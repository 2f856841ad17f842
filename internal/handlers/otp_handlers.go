package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eduotp/eduotp/internal/config"
	"github.com/eduotp/eduotp/internal/models"
	"github.com/eduotp/eduotp/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type OTPHandlers struct {
	otpService *service.OTPService
	validate   *validator.Validate
	otpCfg     *config.OTPConfig
	rateCfg    *config.RateLimitConfig
	logger     *logrus.Logger
}

func NewOTPHandlers(
	otpService *service.OTPService,
	otpCfg *config.OTPConfig,
	rateCfg *config.RateLimitConfig,
	logger *logrus.Logger,
) *OTPHandlers {
	return &OTPHandlers{
		otpService: otpService,
		validate:   validator.New(),
		otpCfg:     otpCfg,
		rateCfg:    rateCfg,
		logger:     logger,
	}
}

type SendOTPRequest struct {
	Mobile   string `json:"mobile" validate:"required,e164"`
	Purpose  string `json:"purpose" validate:"omitempty,oneof=login registration password_reset verification"`
	SenderID string `json:"sender_id" validate:"omitempty,max=11,alphanum"`
}

type SendOTPResponse struct {
	Success           bool   `json:"success"`
	OTPID             string `json:"otp_id"`
	Mobile            string `json:"mobile"`
	Purpose           string `json:"purpose"`
	ExpiresInSeconds  int    `json:"expires_in_seconds"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Reason            string `json:"reason,omitempty"`
	DeliveryError     string `json:"delivery_error,omitempty"`
}

type VerifyOTPRequest struct {
	OTPID  string `json:"otp_id" validate:"required"`
	Code   string `json:"code" validate:"required,numeric"`
	Mobile string `json:"mobile" validate:"required,e164"`
}

type VerifyOTPResponse struct {
	Success           bool   `json:"success"`
	Reason            string `json:"reason,omitempty"`
	VerifiedAt        string `json:"verified_at,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
}

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// reasonStatus maps each rejection reason to its HTTP status.
var reasonStatus = map[service.Reason]int{
	service.ReasonRateLimited:     http.StatusTooManyRequests,
	service.ReasonNotFound:        http.StatusNotFound,
	service.ReasonMobileMismatch:  http.StatusBadRequest,
	service.ReasonAlreadyUsed:     http.StatusBadRequest,
	service.ReasonExpired:         http.StatusBadRequest,
	service.ReasonTooManyAttempts: http.StatusTooManyRequests,
	service.ReasonInvalidCode:     http.StatusBadRequest,
	service.ReasonDeliveryFailed:  http.StatusBadGateway,
}

func statusForReason(reason service.Reason) int {
	if status, ok := reasonStatus[reason]; ok {
		return status
	}
	return http.StatusBadRequest
}

func (h *OTPHandlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	mobile, ok := NormalizeMobile(strings.TrimSpace(req.Mobile))
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_PHONE", "Invalid phone number format. Use E.164 format: +1234567890")
		return
	}
	req.Mobile = mobile

	if req.Purpose == "" {
		req.Purpose = string(models.PurposeLogin)
	}

	if err := h.validate.Struct(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "VALIDATION_FAILED", validationMessage(err))
		return
	}

	result, err := h.otpService.Issue(r.Context(), req.Mobile, models.Purpose(req.Purpose), req.SenderID)
	if errors.Is(err, service.ErrRateLimited) {
		h.respondWithJSON(w, http.StatusTooManyRequests, VerifyOTPResponse{
			Success: false,
			Reason:  string(service.ReasonRateLimited),
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue OTP")
		h.respondWithError(w, http.StatusInternalServerError, "OTP_ISSUE_FAILED", "Failed to issue OTP")
		return
	}

	resp := SendOTPResponse{
		Success:          true,
		OTPID:            result.OTP.OTPID,
		Mobile:           result.OTP.Mobile,
		Purpose:          string(result.OTP.Purpose),
		ExpiresInSeconds: int(result.OTP.ExpiresAt.Sub(result.OTP.CreatedAt).Seconds()),
	}

	if result.Delivery.Delivered {
		resp.ProviderMessageID = result.Delivery.MessageID
	} else {
		// The record stands; the caller decides whether to retry delivery.
		resp.Reason = string(service.ReasonDeliveryFailed)
		resp.DeliveryError = result.Delivery.Error
	}

	h.respondWithJSON(w, http.StatusOK, resp)
}

func (h *OTPHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	req.OTPID = strings.TrimSpace(req.OTPID)
	req.Code = strings.TrimSpace(req.Code)

	mobile, ok := NormalizeMobile(strings.TrimSpace(req.Mobile))
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_PHONE", "Invalid phone number format. Use E.164 format: +1234567890")
		return
	}
	req.Mobile = mobile

	if err := h.validate.Struct(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "VALIDATION_FAILED", validationMessage(err))
		return
	}

	result, err := h.otpService.Verify(r.Context(), req.OTPID, req.Code, req.Mobile)
	if err != nil {
		h.logger.WithError(err).Error("Failed to verify OTP")
		h.respondWithError(w, http.StatusInternalServerError, "OTP_VERIFY_FAILED", "Failed to verify OTP")
		return
	}

	if !result.OK {
		h.respondWithJSON(w, statusForReason(result.Reason), VerifyOTPResponse{
			Success: false,
			Reason:  string(result.Reason),
		})
		return
	}

	h.respondWithJSON(w, http.StatusOK, VerifyOTPResponse{
		Success:           true,
		VerifiedAt:        result.VerifiedAt.UTC().Format(time.RFC3339),
		VerificationToken: result.Token,
	})
}

type ServiceStatusResponse struct {
	Success  bool                  `json:"success"`
	Status   string                `json:"status"`
	Service  string                `json:"service"`
	Features ServiceStatusFeatures `json:"features"`
}

type ServiceStatusFeatures struct {
	OTPLength         int `json:"otp_length"`
	OTPExpirySeconds  int `json:"otp_expiry_seconds"`
	MaxAttempts       int `json:"max_attempts"`
	RateLimitRequests int `json:"rate_limit_requests"`
	RateWindowSeconds int `json:"rate_limit_window_seconds"`
}

func (h *OTPHandlers) Status(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, ServiceStatusResponse{
		Success: true,
		Status:  "operational",
		Service: "otp",
		Features: ServiceStatusFeatures{
			OTPLength:         h.otpCfg.Length,
			OTPExpirySeconds:  int(h.otpCfg.Expiry.Seconds()),
			MaxAttempts:       h.otpCfg.MaxAttempts,
			RateLimitRequests: h.rateCfg.MaxRequests,
			RateWindowSeconds: int(h.rateCfg.Window.Seconds()),
		},
	})
}

type OTPStatusResponse struct {
	Success          bool   `json:"success"`
	OTPID            string `json:"otp_id"`
	Status           string `json:"status"`
	Purpose          string `json:"purpose"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// StatusByID reports whether a record is still active. Missing, expired,
// consumed, and superseded records all answer NOT_FOUND alike.
func (h *OTPHandlers) StatusByID(w http.ResponseWriter, r *http.Request) {
	otpID := mux.Vars(r)["otp_id"]

	rec, err := h.otpService.GetActive(r.Context(), otpID)
	if errors.Is(err, service.ErrNotFound) {
		h.respondWithJSON(w, http.StatusNotFound, VerifyOTPResponse{
			Success: false,
			Reason:  string(service.ReasonNotFound),
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up OTP status")
		h.respondWithError(w, http.StatusInternalServerError, "OTP_STATUS_FAILED", "Failed to look up OTP status")
		return
	}

	h.respondWithJSON(w, http.StatusOK, OTPStatusResponse{
		Success:          true,
		OTPID:            rec.OTPID,
		Status:           "active",
		Purpose:          string(rec.Purpose),
		ExpiresInSeconds: int(time.Until(rec.ExpiresAt).Seconds()),
	})
}

func (h *OTPHandlers) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (h *OTPHandlers) respondWithError(w http.ResponseWriter, status int, code, message string) {
	h.respondWithJSON(w, status, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// validationMessage flattens validator errors into a single user-facing line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, "invalid field "+fe.Field())
	}
	return strings.Join(parts, "; ")
}
