package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/snmusic/snmusic/backend/go-services/internal/config"
	"github.com/snmusic/snmusic/backend/go-services/internal/mailer"
	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"github.com/snmusic/snmusic/backend/go-services/internal/tokens"
	"github.com/snmusic/snmusic/backend/go-services/internal/users"
	"github.com/snmusic/snmusic/backend/go-services/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("email not verified")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service implements the credential flows: registration with email
// verification, login, token refresh, logout and password reset.
type Service struct {
	cfg      *config.Config
	users    users.UserRepository
	otp      *OTPStore
	sessions SessionRepository
	mail     mailer.Mailer
}

func NewService(cfg *config.Config, repo users.UserRepository, otp *OTPStore, sessions SessionRepository, mail mailer.Mailer) *Service {
	return &Service{cfg: cfg, users: repo, otp: otp, sessions: sessions, mail: mail}
}

// Register creates an unverified account and mails a verification code.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || len(password) < 8 {
		return nil, fmt.Errorf("name, email and a password of at least 8 characters are required")
	}
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, users.ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		UserID:         uuid.NewString(),
		Name:           name,
		Email:          email,
		Password:       string(hash),
		Allowed:        true,
		MyEntitlements: []models.Entitlement{},
		Alerts:         []models.Alert{},
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	if err := s.sendCode(ctx, PurposeVerifyEmail, email, "Verify your email",
		"Your verification code is %s. It expires in 10 minutes."); err != nil {
		logger.Warnf("failed to send verification code to %s: %v", email, err)
	}
	return u, nil
}

// VerifyEmail consumes the emailed code and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	ok, err := s.otp.Verify(ctx, PurposeVerifyEmail, email, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return users.ErrNotFound
	}
	return s.users.SetVerified(ctx, u.UserID, true)
}

// ResendVerification issues a fresh code for an unverified account.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil || u.Verified {
		// don't leak account state
		return nil
	}
	return s.sendCode(ctx, PurposeVerifyEmail, email, "Verify your email",
		"Your verification code is %s. It expires in 10 minutes.")
}

// Login checks credentials and opens a refresh session.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !u.Verified {
		return nil, nil, ErrNotVerified
	}
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// Refresh rotates the refresh session and returns a fresh token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	sess, err := s.sessions.GetByRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidSession
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidSession
	}
	// rotate: old refresh token dies with the session
	if err := s.sessions.DeleteByRefresh(ctx, refreshToken); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, u)
}

// Logout drops the refresh session and blacklists the current access token
// for the remainder of its lifetime.
func (s *Service) Logout(ctx context.Context, refreshToken, accessToken string) error {
	if refreshToken != "" {
		if err := s.sessions.DeleteByRefresh(ctx, refreshToken); err != nil {
			return err
		}
	}
	if accessToken != "" {
		if err := BlacklistAccessToken(ctx, accessToken, s.cfg.JWT.AccessTokenTTL); err != nil {
			logger.Warnf("failed to blacklist access token: %v", err)
		}
	}
	return nil
}

// RequestPasswordReset mails a reset code. Always succeeds from the caller's
// perspective so account existence is not leaked.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return nil
	}
	return s.sendCode(ctx, PurposePasswordReset, email, "Reset your password",
		"Your password reset code is %s. It expires in 10 minutes.")
}

// ResetPassword consumes the reset code and installs the new password.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	ok, err := s.otp.Verify(ctx, PurposePasswordReset, email, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return users.ErrNotFound
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.SetPassword(ctx, u.UserID, string(hash))
}

func (s *Service) issueTokens(ctx context.Context, u *models.User) (*TokenPair, error) {
	access, err := tokens.GenerateAccessToken(s.cfg, u, s.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	refresh := hex.EncodeToString(b)
	sess := &Session{
		RefreshToken: refresh,
		UserID:       u.UserID,
		ExpiresAt:    time.Now().UTC().Add(s.cfg.JWT.RefreshTokenTTL),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sendCode(ctx context.Context, purpose, email, subject, bodyFmt string) error {
	code, err := s.otp.Issue(ctx, purpose, email)
	if err != nil {
		return err
	}
	return s.mail.Send(email, subject, fmt.Sprintf(bodyFmt, code))
}
