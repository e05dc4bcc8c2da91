package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bloodbank/internal/domain"
	"bloodbank/internal/repository"
	"bloodbank/internal/store"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const revokedKeyPrefix = "session:revoked:"

// AuthService session issue / verification / revocation
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Verify(ctx context.Context, token string) (*SessionClaims, error)
	Logout(ctx context.Context, token string) error
}

// SessionClaims signed token payload; the hospital used for every mutation comes
// from here, never from the request body.
type SessionClaims struct {
	AdminID    int64  `json:"admin_id"`
	HospitalID int64  `json:"hospital_id"`
	Username   string `json:"username"`
	jwt.RegisteredClaims
}

// LoginRequest login input
type LoginRequest struct {
	Username  string
	Password  string
	IPAddress string // for logs
	UserAgent string // for logs
}

// LoginResponse login output
type LoginResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	AdminID      int64     `json:"admin_id"`
	HospitalID   int64     `json:"hospital_id"`
	HospitalName string    `json:"hospital_name"`
	Username     string    `json:"username"`
}

type authService struct {
	admins    repository.AdminsRepository
	hospitals *HospitalService
	kv        store.KV
	secret    []byte
	ttl       time.Duration
	logger    *zap.Logger
}

// NewAuthService creates the AuthService.
func NewAuthService(admins repository.AdminsRepository, hospitals *HospitalService, kv store.KV, secret string, ttl time.Duration, logger *zap.Logger) AuthService {
	return &authService{
		admins:    admins,
		hospitals: hospitals,
		kv:        kv,
		secret:    []byte(secret),
		ttl:       ttl,
		logger:    logger,
	}
}

var errBadCredentials = domain.NewAuthError("login", "invalid username or password")

// compareHash is swapped in tests.
var compareHash = bcrypt.CompareHashAndPassword

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// unknownUserHash bcrypt hash compared against when the username does not exist, so
// both failure paths cost one bcrypt comparison.
func unknownUserHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	})
	return dummyHash
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, domain.NewValidationError("login", "username and password are required")
	}

	admin, err := s.admins.GetAdminByUsername(ctx, req.Username)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			_ = compareHash(unknownUserHash(), []byte(req.Password))
			s.logger.Warn("Login failed",
				zap.String("username", req.Username),
				zap.String("ip_address", req.IPAddress),
				zap.String("reason", "unknown_user"),
			)
			return nil, errBadCredentials
		}
		return nil, domain.Wrap("login", err)
	}

	if err := compareHash([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("Login failed",
			zap.String("username", req.Username),
			zap.String("ip_address", req.IPAddress),
			zap.String("user_agent", req.UserAgent),
			zap.String("reason", "bad_password"),
		)
		return nil, errBadCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := SessionClaims{
		AdminID:    admin.AdminID,
		HospitalID: admin.HospitalID,
		Username:   admin.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", admin.AdminID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, domain.Wrap("login", fmt.Errorf("failed to sign session token: %w", err))
	}

	s.logger.Info("Login succeeded",
		zap.Int64("admin_id", admin.AdminID),
		zap.Int64("hospital_id", admin.HospitalID),
		zap.String("ip_address", req.IPAddress),
	)

	return &LoginResponse{
		Token:        token,
		ExpiresAt:    expiresAt,
		AdminID:      admin.AdminID,
		HospitalID:   admin.HospitalID,
		HospitalName: s.hospitals.HospitalName(ctx, admin.HospitalID),
		Username:     admin.Username,
	}, nil
}

func (s *authService) parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, domain.NewAuthError("verify_session", "invalid or expired session")
	}
	if claims.ID == "" || claims.HospitalID == 0 {
		return nil, domain.NewAuthError("verify_session", "invalid session claims")
	}
	return claims, nil
}

func (s *authService) Verify(ctx context.Context, token string) (*SessionClaims, error) {
	if token == "" {
		return nil, domain.NewAuthError("verify_session", "authentication required")
	}
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	_, err = s.kv.Get(ctx, revokedKeyPrefix+claims.ID)
	switch {
	case err == nil:
		return nil, domain.NewAuthError("verify_session", "session has been logged out")
	case errors.Is(err, store.ErrMiss):
		return claims, nil
	default:
		// fail closed
		return nil, &domain.AppError{Kind: domain.KindDatabaseConnection, Op: "verify_session", Message: "session store unavailable", Err: err}
	}
}

func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.kv.Set(ctx, revokedKeyPrefix+claims.ID, "1", ttl); err != nil {
		return &domain.AppError{Kind: domain.KindDatabaseConnection, Op: "logout", Message: "session store unavailable", Err: err}
	}
	s.logger.Info("Logout", zap.Int64("admin_id", claims.AdminID), zap.String("jti", claims.ID))
	return nil
}

// HashPassword bcrypt hash for seeding admins.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
