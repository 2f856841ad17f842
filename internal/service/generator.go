package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateCode produces a numeric OTP of exactly length digits, drawn
// uniformly from [0, 10^length) and zero-padded, so leading zeros are
// preserved and every code is equally likely.
func GenerateCode(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}

	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n), nil
}
