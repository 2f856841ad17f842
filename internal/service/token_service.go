package service

import (
	"fmt"
	"time"

	"github.com/eduotp/eduotp/internal/config"
	"github.com/eduotp/eduotp/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TokenService signs short-lived verification proofs that downstream
// services can check instead of re-verifying the OTP themselves.
type TokenService struct {
	secretKey []byte
	expiry    time.Duration
	logger    *logrus.Logger
}

func NewTokenService(cfg *config.JWTConfig, logger *logrus.Logger) (*TokenService, error) {
	secretKey := []byte(cfg.SecretKey)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &TokenService{
		secretKey: secretKey,
		expiry:    cfg.Expiry,
		logger:    logger,
	}, nil
}

type VerificationClaims struct {
	Mobile  string         `json:"mobile"`
	Purpose models.Purpose `json:"purpose"`
	Type    string         `json:"type"`
	jwt.RegisteredClaims
}

func (s *TokenService) GenerateVerificationToken(mobile string, purpose models.Purpose) (string, error) {
	now := time.Now()
	jti := uuid.New().String()

	claims := &VerificationClaims{
		Mobile:  mobile,
		Purpose: purpose,
		Type:    "otp_verified",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   mobile,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign verification token")
		return "", fmt.Errorf("failed to sign verification token: %w", err)
	}

	return tokenString, nil
}

func (s *TokenService) VerifyToken(tokenString string) (*VerificationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &VerificationClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*VerificationClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Type != "otp_verified" {
		return nil, fmt.Errorf("token is not a verification proof")
	}

	return claims, nil
}
