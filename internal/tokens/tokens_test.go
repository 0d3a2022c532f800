package tokens

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/snmusic/snmusic/backend/go-services/internal/config"
	"github.com/snmusic/snmusic/backend/go-services/internal/models"
)

func encodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-32-bytes-should-be-long-enough"

	u := &models.User{UserID: "user-123", Name: "Test User", Email: "test@example.com", Admin: true}
	tokenStr, err := GenerateAccessToken(cfg, u, 2*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	c, err := VerifyAccessToken(cfg.JWT.Secret, tokenStr)
	if err != nil {
		t.Fatalf("VerifyAccessToken error: %v", err)
	}
	if c.UserID != u.UserID {
		t.Fatalf("unexpected sub claim: got=%v want=%v", c.UserID, u.UserID)
	}
	if !c.Admin {
		t.Fatalf("expected admin claim to survive the round trip")
	}
}

func TestVerifyAccessToken_Expiry(t *testing.T) {
	cfg := &config.Config{}
	cfg.JWT.Secret = "another-secret-32-bytes-longgggg"
	u := &models.User{UserID: "u2", Name: "X", Email: "x@x"}
	tokenStr, err := GenerateAccessToken(cfg, u, 1*time.Second)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	// wait for expiry
	time.Sleep(2 * time.Second)
	if _, err := VerifyAccessToken(cfg.JWT.Secret, tokenStr); err == nil {
		t.Fatalf("expected verification to fail after expiry")
	}
}

func TestVerifyAccessToken_WrongSecretFails(t *testing.T) {
	cfg := &config.Config{}
	cfg.JWT.Secret = "secret-one-32-bytes-xxxxxxxxxxxxxxxx"
	u := &models.User{UserID: "u3", Name: "Bob", Email: "bob@example.com"}
	tokenStr, err := GenerateAccessToken(cfg, u, 2*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	if _, err := VerifyAccessToken("different-secret-xxxxxxxxxxxxxxxx", tokenStr); err == nil {
		t.Fatalf("expected verification to fail with wrong secret")
	}
}

func TestVerifyAccessToken_Malformed(t *testing.T) {
	if _, err := VerifyAccessToken("x", "not.a.jwt"); err == nil {
		t.Fatalf("expected verification to fail for malformed token")
	}
}

// Rejected when alg=none (unsigned token)
func TestVerifyAccessToken_AlgNoneRejected(t *testing.T) {
	payload := `{"sub":"u-none","exp":9999999999}`
	tok := encodeSegment([]byte(`{"alg":"none"}`)) + "." + encodeSegment([]byte(payload)) + "."
	if _, err := VerifyAccessToken("x", tok); err == nil {
		t.Fatalf("expected alg=none token to be rejected")
	}
}

// Tampering with payload must fail signature verification
func TestVerifyAccessToken_TamperedPayload(t *testing.T) {
	cfg := &config.Config{}
	cfg.JWT.Secret = "tamper-test-secret-32-bytes-xxxxxxx"
	u := &models.User{UserID: "user-t", Name: "Tamper", Email: "t@example.com"}
	tokenStr, err := GenerateAccessToken(cfg, u, 5*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token parts")
	}
	payloadBytes, _ := base64.RawURLEncoding.DecodeString(parts[1])
	payloadStr := strings.Replace(string(payloadBytes), "user-t", "attacker", 1)
	parts[1] = encodeSegment([]byte(payloadStr))
	if _, err := VerifyAccessToken(cfg.JWT.Secret, strings.Join(parts, ".")); err == nil {
		t.Fatalf("expected signature verification to fail for tampered token")
	}
}
