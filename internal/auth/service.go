package auth

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/lottery-web/internal/config"
	"github.com/elskow/lottery-web/internal/securitylog"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidPinKey      = errors.New("invalid pin key")
)

const totpPeriod = 30

// LoginFailure is returned for a rejected password or one-time code. It does
// not say which factor failed, only how many attempts the session has left.
type LoginFailure struct {
	Remaining int
}

func (e *LoginFailure) Error() string {
	return AttemptsMessage(e.Remaining)
}

func (e *LoginFailure) Unwrap() error {
	return ErrInvalidCredentials
}

type Service struct {
	config     *config.AuthConfig
	log        *zap.Logger
	repository Repository
	guard      *Guard
	security   *securitylog.Log
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

type Claims struct {
	UserID    uint   `json:"uid"`
	Role      Role   `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewService(
	config *config.AuthConfig,
	log *zap.Logger,
	repo Repository,
	guard *Guard,
	security *securitylog.Log,
) *Service {
	return &Service{
		config:     config,
		log:        log,
		repository: repo,
		guard:      guard,
		security:   security,
		now:        time.Now,
	}
}

func (s *Service) HashPassword(password string) (string, error) {
	cost := s.config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func (s *Service) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// burnPasswordCheck spends the same time as a real comparison so unknown
// emails cannot be told apart from wrong passwords.
func (s *Service) burnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.HashPassword("dummy-password")
	})
	s.CheckPasswordHash(password, s.dummyHash)
}

// VerifyCode checks a six digit time-based code against pinKey, accepting
// config.TOTPSkew extra 30 second windows either side of now.
func (s *Service) VerifyCode(pinKey, code string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), pinKey, s.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      s.config.TOTPSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *Service) GenerateToken(p *Principal) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:    p.UserID,
		Role:      p.Role,
		SessionID: p.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

type Registration struct {
	Email           string
	FirstName       string
	LastName        string
	Phone           string
	Password        string
	ConfirmPassword string
	PinKey          string
}

// Enrollment is the result of a registration. PinKey and ProvisioningURL are
// only set when the pin key was generated for the user.
type Enrollment struct {
	User            *User
	PinKey          string
	ProvisioningURL string
}

func (s *Service) normalizePinKey(pinKey string) (string, error) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pinKey), " ", ""))
	if len(key) != s.config.PinKeyLength {
		return "", fmt.Errorf("%w: must be %d characters", ErrInvalidPinKey, s.config.PinKeyLength)
	}
	if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(key); err != nil {
		return "", fmt.Errorf("%w: not base32", ErrInvalidPinKey)
	}
	return key, nil
}

func (s *Service) generatePinKey(email string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.TOTPIssuer,
		AccountName: email,
		Period:      totpPeriod,
		SecretSize:  uint(s.config.PinKeyLength * 5 / 8),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

// Register creates a user with the user role.
func (s *Service) Register(ctx context.Context, reg Registration, ip string) (*Enrollment, error) {
	return s.createUser(ctx, reg, RoleUser, ip)
}

func (s *Service) createUser(ctx context.Context, reg Registration, role Role, ip string) (*Enrollment, error) {
	if reg.Password != reg.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	email := normalizeEmail(reg.Email)
	if _, err := s.repository.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	enrollment := &Enrollment{}
	pinKey := reg.PinKey
	if strings.TrimSpace(pinKey) == "" {
		key, err := s.generatePinKey(email)
		if err != nil {
			return nil, fmt.Errorf("generate pin key: %w", err)
		}
		pinKey = key.Secret()
		enrollment.PinKey = pinKey
		enrollment.ProvisioningURL = key.URL()
	}
	pinKey, err := s.normalizePinKey(pinKey)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := s.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Phone:        reg.Phone,
		PasswordHash: hashedPassword,
		PinKey:       pinKey,
		Role:         role,
	}
	if err := s.repository.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.security.Registration(user.FirstName, user.LastName, ip)
	enrollment.User = user
	return enrollment, nil
}

// EnsureAdmin creates the configured administrator unless a user with that
// email already exists.
func (s *Service) EnsureAdmin(ctx context.Context, admin config.AdminConfig) error {
	if admin.Email == "" {
		return nil
	}
	if _, err := s.repository.GetUserByEmail(ctx, admin.Email); err == nil {
		return nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	_, err := s.createUser(ctx, Registration{
		Email:           admin.Email,
		FirstName:       admin.FirstName,
		LastName:        admin.LastName,
		Phone:           admin.Phone,
		Password:        admin.Password,
		ConfirmPassword: admin.Password,
		PinKey:          admin.PinKey,
	}, RoleAdmin, "startup")
	if err != nil {
		return fmt.Errorf("create admin %s: %w", admin.Email, err)
	}
	s.log.Info("created administrator account", zap.String("email", normalizeEmail(admin.Email)))
	return nil
}

type Credentials struct {
	Email    string
	Password string
	Code     string
}

// Login runs the attempt guard, then the password, then the one-time code.
// Failures return *LoginFailure (wrapping ErrInvalidCredentials) or
// ErrLockedOut; store faults are returned as-is and must deny access.
func (s *Service) Login(ctx context.Context, sessionID string, creds Credentials, ip string) (*User, error) {
	attempt, err := s.guard.Begin(ctx, sessionID)
	if errors.Is(err, ErrLockedOut) {
		s.security.Lockout(normalizeEmail(creds.Email), ip)
		return nil, ErrLockedOut
	}
	if err != nil {
		return nil, err
	}

	user, err := s.checkCredentials(ctx, creds)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			if rerr := s.guard.Release(ctx, sessionID); rerr != nil {
				s.log.Warn("failed to release login attempt", zap.Error(rerr))
			}
			return nil, fmt.Errorf("check credentials: %w", err)
		}
		remaining := s.guard.Remaining(attempt)
		s.security.InvalidLogin(normalizeEmail(creds.Email), ip, remaining)
		if remaining == 0 {
			s.security.Lockout(normalizeEmail(creds.Email), ip)
		}
		return nil, &LoginFailure{Remaining: remaining}
	}

	if err := s.guard.Succeed(ctx, sessionID); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repository.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	user.LastLoggedIn = user.CurrentLoggedIn
	user.CurrentLoggedIn = &now

	s.security.Login(PrincipalFor(user, sessionID).Actor(), ip)
	return user, nil
}

func (s *Service) checkCredentials(ctx context.Context, creds Credentials) (*User, error) {
	user, err := s.repository.GetUserByEmail(ctx, creds.Email)
	if errors.Is(err, ErrUserNotFound) {
		s.burnPasswordCheck(creds.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !s.CheckPasswordHash(creds.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !s.VerifyCode(user.PinKey, creds.Code) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) LoginState(ctx context.Context, sessionID string) (GuardState, error) {
	return s.guard.State(ctx, sessionID)
}

func (s *Service) Logout(p *Principal, ip string) {
	s.security.Logout(p.Actor(), ip)
}

func (s *Service) GetUser(ctx context.Context, id uint) (*User, error) {
	return s.repository.GetUserByID(ctx, id)
}

// PinKey returns the one-time-code seed of userID. Draw keys are derived
// from it.
func (s *Service) PinKey(ctx context.Context, userID uint) (string, error) {
	user, err := s.repository.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.PinKey, nil
}

// ListUsers returns every account with the user role. Administrators only.
func (s *Service) ListUsers(ctx context.Context, p *Principal) ([]User, error) {
	if err := Authorize(p, RoleAdmin).Err(); err != nil {
		return nil, err
	}
	return s.repository.ListUsersByRole(ctx, RoleUser)
}
