package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/eduotp/eduotp/internal/models"
	"github.com/eduotp/eduotp/internal/service"
)

// MemoryOTPStore is a mutex-guarded map implementation of the OTP store,
// used for tests and single-instance local runs. The lock makes Consume and
// IncrementAttempts atomic the same way the DynamoDB conditional updates do.
type MemoryOTPStore struct {
	mu      sync.Mutex
	records map[string]models.OTPRequest
	active  map[string]string
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{
		records: make(map[string]models.OTPRequest),
		active:  make(map[string]string),
	}
}

func pairKey(mobile string, purpose models.Purpose) string {
	return fmt.Sprintf("%s#%s", mobile, purpose)
}

func (s *MemoryOTPStore) Put(_ context.Context, rec *models.OTPRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.OTPID] = *rec
	s.active[pairKey(rec.Mobile, rec.Purpose)] = rec.OTPID
	return nil
}

func (s *MemoryOTPStore) GetByID(_ context.Context, otpID string) (*models.OTPRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[otpID]
	if !ok {
		return nil, service.ErrNotFound
	}

	out := rec
	return &out, nil
}

func (s *MemoryOTPStore) DeleteActive(_ context.Context, mobile string, purpose models.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(mobile, purpose)
	if otpID, ok := s.active[key]; ok {
		delete(s.records, otpID)
		delete(s.active, key)
	}
	return nil
}

func (s *MemoryOTPStore) IncrementAttempts(_ context.Context, otpID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[otpID]
	if !ok {
		return 0, service.ErrNotFound
	}

	rec.Attempts++
	s.records[otpID] = rec
	return rec.Attempts, nil
}

func (s *MemoryOTPStore) Consume(_ context.Context, otpID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[otpID]
	if !ok {
		return service.ErrNotFound
	}

	if rec.Consumed {
		return service.ErrAlreadyUsed
	}

	rec.Consumed = true
	s.records[otpID] = rec
	return nil
}

func (s *MemoryOTPStore) Invalidate(_ context.Context, otpID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[otpID]
	if !ok {
		return service.ErrNotFound
	}

	rec.Consumed = true
	s.records[otpID] = rec
	return nil
}

// ExpireNow force-expires a record. Test helper.
func (s *MemoryOTPStore) ExpireNow(otpID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[otpID]; ok {
		rec.ExpiresAt = rec.CreatedAt
		s.records[otpID] = rec
	}
}
