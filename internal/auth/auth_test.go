package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/lottery-web/internal/config"
	"github.com/elskow/lottery-web/internal/securitylog"
)

const (
	testPinKey   = "BFB5S34STBLZCOB22K6PPYDCMZMH46OJ"
	testPassword = "correct horse"
)

var testNow = time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC)

type testEnv struct {
	svc      *Service
	repo     *mockRepository
	store    *MemorySessionStore
	security *securitylog.Log
	events   *observer.ObservedLogs
}

func newTestLogger(t *testing.T) *zap.Logger {
	logger, err := zap.NewDevelopment()
	assert.NoError(t, err)
	return logger
}

func newTestConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:        "test-secret-key",
		TokenExpiration:  time.Hour,
		SessionTTL:       30 * time.Minute,
		MaxLoginAttempts: 3,
		TOTPIssuer:       "Lottery",
		PinKeyLength:     32,
		BcryptCost:       bcrypt.MinCost,
		SessionCookie:    "lottery_session",
		TokenCookie:      "lottery_token",
		SessionStore:     "memory",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, newTestConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg *config.AuthConfig) *testEnv {
	core, events := observer.New(zapcore.InfoLevel)
	security := securitylog.New(core)
	repo := newMockRepository()
	store := NewMemorySessionStore(cfg.SessionTTL)

	svc := NewService(cfg, newTestLogger(t), repo, NewGuard(store, cfg.MaxLoginAttempts), security)
	svc.now = func() time.Time { return testNow }

	return &testEnv{
		svc:      svc,
		repo:     repo,
		store:    store,
		security: security,
		events:   events,
	}
}

func newTestService(t *testing.T) *Service {
	return newTestEnv(t).svc
}

// createUser stores a user directly, bypassing registration.
func (e *testEnv) createUser(t *testing.T, email string, role Role) *User {
	hash, err := e.svc.HashPassword(testPassword)
	require.NoError(t, err)

	user := &User{
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		Phone:        "0191-123-4567",
		PasswordHash: hash,
		PinKey:       testPinKey,
		Role:         role,
	}
	require.NoError(t, e.repo.CreateUser(context.Background(), user))
	return user
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func validCode(t *testing.T) string {
	return codeAt(t, testPinKey, testNow)
}

func (e *testEnv) messages() []string {
	var out []string
	for _, entry := range e.events.All() {
		out = append(out, entry.Message)
	}
	return out
}
