package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPStore keeps short-lived one-time codes in Redis, keyed by purpose and
// email. Codes are single use: a successful verify consumes the key.
type OTPStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// OTP purposes.
const (
	PurposeVerifyEmail   = "verify"
	PurposePasswordReset = "reset"
)

func NewOTPStore(client *redis.Client, ttl time.Duration) *OTPStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OTPStore{client: client, prefix: "otp:", ttl: ttl}
}

func (s *OTPStore) key(purpose, email string) string {
	return s.prefix + purpose + ":" + email
}

// Issue generates a fresh 6-digit code for the email, replacing any code
// outstanding for the same purpose.
func (s *OTPStore) Issue(ctx context.Context, purpose, email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	if err := s.client.Set(ctx, s.key(purpose, email), code, s.ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks the code and consumes it on success.
func (s *OTPStore) Verify(ctx context.Context, purpose, email, code string) (bool, error) {
	stored, err := s.client.Get(ctx, s.key(purpose, email)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if stored != code {
		return false, nil
	}
	if err := s.client.Del(ctx, s.key(purpose, email)).Err(); err != nil {
		return false, err
	}
	return true, nil
}
