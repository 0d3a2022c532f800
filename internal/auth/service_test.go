package auth

import (
	"context"
	"regexp"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/snmusic/snmusic/backend/go-services/internal/config"
	"github.com/snmusic/snmusic/backend/go-services/internal/users"
)

// captureMailer records the last message so tests can pull the emailed code.
type captureMailer struct {
	to, subject, body string
}

func (m *captureMailer) Send(to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return nil
}

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	match := codeRe.FindStringSubmatch(m.body)
	require.NotNil(t, match, "no code in mail body: %q", m.body)
	return match[1]
}

func newTestAuth(t *testing.T) (*Service, *users.MemoryRepository, *captureMailer) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	cfg := &config.Config{}
	cfg.JWT.Secret = "auth-test-secret-32-bytes-xxxxxxxx"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour

	repo := users.NewMemoryRepository()
	mail := &captureMailer{}
	svc := NewService(cfg, repo,
		NewOTPStore(client, 10*time.Minute),
		NewRedisSessionRepository(client, "test:session:"),
		mail)
	return svc, repo, mail
}

func TestRegisterVerifyLogin(t *testing.T) {
	svc, _, mail := newTestAuth(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Asha", "Asha@Example.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, "asha@example.com", u.Email)
	require.False(t, u.Verified)
	require.Equal(t, "asha@example.com", mail.to)

	// login before verification is refused
	_, _, err = svc.Login(ctx, "asha@example.com", "s3cret-pass")
	require.ErrorIs(t, err, ErrNotVerified)

	require.NoError(t, svc.VerifyEmail(ctx, "asha@example.com", mail.lastCode(t)))

	logged, pair, err := svc.Login(ctx, "asha@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.True(t, logged.Verified)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
}

func TestVerifyEmail_CodeIsSingleUse(t *testing.T) {
	svc, _, mail := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Asha", "asha@example.com", "s3cret-pass")
	require.NoError(t, err)
	code := mail.lastCode(t)

	require.NoError(t, svc.VerifyEmail(ctx, "asha@example.com", code))
	require.ErrorIs(t, svc.VerifyEmail(ctx, "asha@example.com", code), ErrInvalidCode)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _, mail := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Asha", "asha@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(ctx, "asha@example.com", mail.lastCode(t)))

	_, _, err = svc.Login(ctx, "asha@example.com", "wrong-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "s3cret-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Asha", "asha@example.com", "s3cret-pass")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Other", "asha@example.com", "different-pass")
	require.ErrorIs(t, err, users.ErrEmailTaken)
}

func TestRefresh_RotatesSession(t *testing.T) {
	svc, _, mail := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Asha", "asha@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(ctx, "asha@example.com", mail.lastCode(t)))
	_, pair, err := svc.Login(ctx, "asha@example.com", "s3cret-pass")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// the old refresh token is dead after rotation
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestLogout_KillsSessionAndBlacklistsToken(t *testing.T) {
	svc, _, mail := newTestAuth(t)
	ctx := context.Background()

	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	t.Cleanup(func() { SetBlacklistClient(nil) })

	_, err = svc.Register(ctx, "Asha", "asha@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(ctx, "asha@example.com", mail.lastCode(t)))
	_, pair, err := svc.Login(ctx, "asha@example.com", "s3cret-pass")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken, pair.AccessToken))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)

	black, err := IsAccessTokenBlacklisted(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.True(t, black)
}

func TestPasswordReset(t *testing.T) {
	svc, _, mail := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Asha", "asha@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(ctx, "asha@example.com", mail.lastCode(t)))

	require.NoError(t, svc.RequestPasswordReset(ctx, "asha@example.com"))
	code := mail.lastCode(t)
	require.NoError(t, svc.ResetPassword(ctx, "asha@example.com", code, "new-password1"))

	_, _, err = svc.Login(ctx, "asha@example.com", "s3cret-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "asha@example.com", "new-password1")
	require.NoError(t, err)

	// unknown account does not error, to avoid leaking existence
	require.NoError(t, svc.RequestPasswordReset(ctx, "ghost@example.com"))
}

func TestOTPStore_Expiry(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	store := NewOTPStore(client, time.Second)
	ctx := context.Background()

	code, err := store.Issue(ctx, PurposeVerifyEmail, "a@b.c")
	require.NoError(t, err)
	m.FastForward(2 * time.Second)

	ok, err := store.Verify(ctx, PurposeVerifyEmail, "a@b.c", code)
	require.NoError(t, err)
	require.False(t, ok)
}
