package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eduotp/eduotp/internal/models"
	"github.com/eduotp/eduotp/internal/service"
)

func testRecord(otpID, mobile string) *models.OTPRequest {
	now := time.Now()
	return &models.OTPRequest{
		OTPID:     otpID,
		Mobile:    mobile,
		Purpose:   models.PurposeLogin,
		CodeHash:  "hash",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
}

func TestMemoryOTPStore(t *testing.T) {
	ctx := context.Background()

	t.Run("GetUnknownIsNotFound", func(t *testing.T) {
		store := NewMemoryOTPStore()

		if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, service.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ConsumeIsSingleUse", func(t *testing.T) {
		store := NewMemoryOTPStore()
		if err := store.Put(ctx, testRecord("otp-1", "+10000000001")); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		if err := store.Consume(ctx, "otp-1"); err != nil {
			t.Fatalf("first consume failed: %v", err)
		}
		if err := store.Consume(ctx, "otp-1"); !errors.Is(err, service.ErrAlreadyUsed) {
			t.Fatalf("expected ErrAlreadyUsed on second consume, got %v", err)
		}
	})

	t.Run("IncrementAttemptsCounts", func(t *testing.T) {
		store := NewMemoryOTPStore()
		if err := store.Put(ctx, testRecord("otp-2", "+10000000002")); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		for want := 1; want <= 3; want++ {
			got, err := store.IncrementAttempts(ctx, "otp-2")
			if err != nil {
				t.Fatalf("increment failed: %v", err)
			}
			if got != want {
				t.Fatalf("expected count %d, got %d", want, got)
			}
		}
	})

	t.Run("DeleteActiveRemovesRecord", func(t *testing.T) {
		store := NewMemoryOTPStore()
		if err := store.Put(ctx, testRecord("otp-3", "+10000000003")); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		if err := store.DeleteActive(ctx, "+10000000003", models.PurposeLogin); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := store.GetByID(ctx, "otp-3"); !errors.Is(err, service.ErrNotFound) {
			t.Fatalf("expected record gone, got %v", err)
		}

		// Nothing active is not an error.
		if err := store.DeleteActive(ctx, "+10000000003", models.PurposeLogin); err != nil {
			t.Fatalf("expected no-op delete, got %v", err)
		}
	})
}
