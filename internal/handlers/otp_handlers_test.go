package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/eduotp/eduotp/internal/config"
	"github.com/eduotp/eduotp/internal/handlers"
	"github.com/eduotp/eduotp/internal/repository"
	"github.com/eduotp/eduotp/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type fakeGateway struct {
	mu   sync.Mutex
	sent []string
}

func (g *fakeGateway) Send(_ context.Context, mobile, message, senderID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sent = append(g.sent, message)
	return fmt.Sprintf("msg-%d", len(g.sent)), nil
}

// lastCode pulls the OTP out of the most recently "delivered" message.
func (g *fakeGateway) lastCode(t *testing.T) string {
	t.Helper()

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.sent) == 0 {
		t.Fatalf("no messages sent")
	}
	code := regexp.MustCompile(`\d{6}`).FindString(g.sent[len(g.sent)-1])
	if code == "" {
		t.Fatalf("no code in message %q", g.sent[len(g.sent)-1])
	}
	return code
}

func newTestRouter(maxRequests int) (*mux.Router, *fakeGateway) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	otpCfg := &config.OTPConfig{Length: 6, Expiry: 10 * time.Minute, MaxAttempts: 5}
	smsCfg := &config.SMSConfig{Provider: "console", SenderID: "EDUOTP", DeliveryTimeout: time.Second}
	rateCfg := &config.RateLimitConfig{Window: time.Hour, MaxRequests: maxRequests, Driver: "memory"}

	store := repository.NewMemoryOTPStore()
	limiter := repository.NewMemoryRateLimiter(rateCfg.Window, rateCfg.MaxRequests)
	gw := &fakeGateway{}

	otpService := service.NewOTPService(store, limiter, gw, nil, otpCfg, smsCfg, logger)
	otpHandlers := handlers.NewOTPHandlers(otpService, otpCfg, rateCfg, logger)

	router := mux.NewRouter()
	otp := router.PathPrefix("/api/v1/otp").Subrouter()
	otp.HandleFunc("/send", otpHandlers.SendOTP).Methods("POST")
	otp.HandleFunc("/verify", otpHandlers.VerifyOTP).Methods("POST")
	otp.HandleFunc("/status", otpHandlers.Status).Methods("GET")
	otp.HandleFunc("/status/{otp_id}", otpHandlers.StatusByID).Methods("GET")

	return router, gw
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return rec, decoded
}

func TestSendOTPEndpoint(t *testing.T) {

	t.Run("Success", func(t *testing.T) {
		router, _ := newTestRouter(5)

		rec, body := doJSON(t, router, http.MethodPost, "/api/v1/otp/send", map[string]string{
			"mobile":  "+12345678901",
			"purpose": "login",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", rec.Code, body)
		}
		if body["success"] != true || body["otp_id"] == "" {
			t.Fatalf("unexpected body: %v", body)
		}
		if body["expires_in_seconds"].(float64) != 600 {
			t.Fatalf("expected 600s expiry, got %v", body["expires_in_seconds"])
		}
		if body["provider_message_id"] == "" {
			t.Fatalf("expected provider message id, got %v", body)
		}
		if _, ok := body["code"]; ok {
			t.Fatalf("plaintext code must never appear in the response: %v", body)
		}
	})

	t.Run("NormalizesBareMobile", func(t *testing.T) {
		router, _ := newTestRouter(5)

		rec, body := doJSON(t, router, http.MethodPost, "/api/v1/otp/send", map[string]string{
			"mobile": "2345678901",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", rec.Code, body)
		}
		if body["mobile"] != "+12345678901" {
			t.Fatalf("expected normalized mobile, got %v", body["mobile"])
		}
		if body["purpose"] != "login" {
			t.Fatalf("expected default purpose login, got %v", body["purpose"])
		}
	})

	t.Run("InvalidMobile", func(t *testing.T) {
		router, _ := newTestRouter(5)

		rec, body := doJSON(t, router, http.MethodPost, "/api/v1/otp/send", map[string]string{
			"mobile": "abc",
		})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %v", rec.Code, body)
		}
	})

	t.Run("InvalidPurpose", func(t *testing.T) {
		router, _ := newTestRouter(5)

		rec, body := doJSON(t, router, http.MethodPost, "/api/v1/otp/send", map[string]string{
			"mobile":  "+12345678901",
			"purpose": "bribery",
		})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %v", rec.Code, body)
		}
	})

	t.Run("RateLimited", func(t *testing.T) {
		router, _ := newTestRouter(1)

		if rec, body := doJSON(t, router, http.MethodPost, "/api/v1/otp/send", map[string]string{
			"mobile": "+12345678901",
		}); rec.Code != http.StatusOK {
			t.Fatalf("first send should pass, got %d: %v", rec.Code, body)
		}

		rec, body := doJSON(t, router, http.MethodPost, "/api/v1/otp/send", map[string]string{
			"mobile": "+12345678901",
		})

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d: %v", rec.Code, body)
		}
		if body["reason"] != "RATE_LIMITED" {
			t.Fatalf("expected RATE_LIMITED reason, got %v", body)
		}
	})
}

func TestVerifyOTPEndpoint(t *testing.T) {

	t.Run("SuccessAndReplay", func(t *testing.T) {
		router, gw := newTestRouter(5)

		_, sendBody := doJSON(t, router, http.MethodPost, "/api/v1/otp/send", map[string]string{
			"mobile": "+12345678901",
		})
		otpID := sendBody["otp_id"].(string)
		code := gw.lastCode(t)

		rec, body := doJSON(t, router, http.MethodPost, "/api/v1/otp/verify", map[string]string{
			"otp_id": otpID,
			"code":   code,
			"mobile": "+12345678901",
		})
		if rec.Code != http.StatusOK || body["success"] != true {
			t.Fatalf("expected verification success, got %d: %v", rec.Code, body)
		}
		if body["verified_at"] == "" {
			t.Fatalf("expected verified_at timestamp, got %v", body)
		}

		rec, body = doJSON(t, router, http.MethodPost, "/api/v1/otp/verify", map[string]string{
			"otp_id": otpID,
			"code":   code,
			"mobile": "+12345678901",
		})
		if rec.Code != http.StatusBadRequest || body["reason"] != "ALREADY_USED" {
			t.Fatalf("expected ALREADY_USED replay, got %d: %v", rec.Code, body)
		}
	})

	t.Run("WrongCode", func(t *testing.T) {
		router, gw := newTestRouter(5)

		_, sendBody := doJSON(t, router, http.MethodPost, "/api/v1/otp/send", map[string]string{
			"mobile": "+12345678901",
		})
		otpID := sendBody["otp_id"].(string)

		code := gw.lastCode(t)
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}

		rec, body := doJSON(t, router, http.MethodPost, "/api/v1/otp/verify", map[string]string{
			"otp_id": otpID,
			"code":   wrong,
			"mobile": "+12345678901",
		})
		if rec.Code != http.StatusBadRequest || body["reason"] != "INVALID_CODE" {
			t.Fatalf("expected INVALID_CODE, got %d: %v", rec.Code, body)
		}
	})

	t.Run("UnknownID", func(t *testing.T) {
		router, _ := newTestRouter(5)

		rec, body := doJSON(t, router, http.MethodPost, "/api/v1/otp/verify", map[string]string{
			"otp_id": "nope",
			"code":   "123456",
			"mobile": "+12345678901",
		})
		if rec.Code != http.StatusNotFound || body["reason"] != "NOT_FOUND" {
			t.Fatalf("expected NOT_FOUND, got %d: %v", rec.Code, body)
		}
	})

	t.Run("MobileMismatch", func(t *testing.T) {
		router, gw := newTestRouter(5)

		_, sendBody := doJSON(t, router, http.MethodPost, "/api/v1/otp/send", map[string]string{
			"mobile": "+12345678901",
		})

		rec, body := doJSON(t, router, http.MethodPost, "/api/v1/otp/verify", map[string]string{
			"otp_id": sendBody["otp_id"].(string),
			"code":   gw.lastCode(t),
			"mobile": "+19999999999",
		})
		if rec.Code != http.StatusBadRequest || body["reason"] != "MOBILE_MISMATCH" {
			t.Fatalf("expected MOBILE_MISMATCH, got %d: %v", rec.Code, body)
		}
	})
}

func TestStatusEndpoints(t *testing.T) {

	t.Run("ServiceStatus", func(t *testing.T) {
		router, _ := newTestRouter(5)

		rec, body := doJSON(t, router, http.MethodGet, "/api/v1/otp/status", nil)
		if rec.Code != http.StatusOK || body["status"] != "operational" {
			t.Fatalf("expected operational status, got %d: %v", rec.Code, body)
		}
	})

	t.Run("ActiveThenConsumed", func(t *testing.T) {
		router, gw := newTestRouter(5)

		_, sendBody := doJSON(t, router, http.MethodPost, "/api/v1/otp/send", map[string]string{
			"mobile": "+12345678901",
		})
		otpID := sendBody["otp_id"].(string)

		rec, body := doJSON(t, router, http.MethodGet, "/api/v1/otp/status/"+otpID, nil)
		if rec.Code != http.StatusOK || body["status"] != "active" {
			t.Fatalf("expected active status, got %d: %v", rec.Code, body)
		}

		doJSON(t, router, http.MethodPost, "/api/v1/otp/verify", map[string]string{
			"otp_id": otpID,
			"code":   gw.lastCode(t),
			"mobile": "+12345678901",
		})

		// Consumed records are indistinguishable from never-issued ones.
		rec, body = doJSON(t, router, http.MethodGet, "/api/v1/otp/status/"+otpID, nil)
		if rec.Code != http.StatusNotFound || body["reason"] != "NOT_FOUND" {
			t.Fatalf("expected NOT_FOUND after consumption, got %d: %v", rec.Code, body)
		}
	})

	t.Run("UnknownID", func(t *testing.T) {
		router, _ := newTestRouter(5)

		rec, body := doJSON(t, router, http.MethodGet, "/api/v1/otp/status/ghost", nil)
		if rec.Code != http.StatusNotFound || body["reason"] != "NOT_FOUND" {
			t.Fatalf("expected NOT_FOUND, got %d: %v", rec.Code, body)
		}
	})
}
