package tokenmanager

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
	"github.com/Mohamedseffine/01Blog/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultIssuer          = "authgate"
)

// MinSecretKeyLength is the shortest HS256 key (in bytes) the service accepts from configuration
const MinSecretKeyLength = 32

type AccessClaims struct {
	jwt.RegisteredClaims
	UserID int64       `json:"uid"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Value of 'iss' claim
	Issuer string

	// Time source for issuing and verifying, time.Now if not set
	Clock func() time.Time
}

// TokenManager signs and verifies tokens. It holds no state besides configuration
// and is safe for concurrent use
type TokenManager struct {
	// Secret key to sign tokens
	key []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	issuer string
	clock  func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method %q, only HMAC methods allowed", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &TokenManager{
		key:        []byte(cfg.SecretKey),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		clock:      cfg.Clock,
	}, nil
}

// Current time of the manager clock
func (m *TokenManager) Now() time.Time {
	return m.clock()
}

func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// Claims are encoded with second precision, so token times are truncated to be exact
func (m *TokenManager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.clock().Truncate(time.Second)
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// Issue access token carrying user identity
func (m *TokenManager) IssueAccess(user models.User) (models.IssuedToken, error) {
	claims := AccessClaims{
		RegisteredClaims: m.registered(user.Username, m.accessTTL),
		UserID:           user.ID,
		Email:            user.Email,
		Role:             user.Role,
	}

	access, err := jwt.NewWithClaims(m.alg, claims).SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: access, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Issue token with registered claims only, it is used as refresh token
func (m *TokenManager) IssueOpaque(subject string) (models.IssuedToken, error) {
	claims := m.registered(subject, m.refreshTTL)

	token, err := jwt.NewWithClaims(m.alg, claims).SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.IssuedToken{Value: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Parse and validate access token
func (m *TokenManager) VerifyAccess(access string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(access, claims); err != nil {
		return nil, err
	}

	if !claims.Role.Valid() || claims.Subject == "" {
		return nil, fmt.Errorf("%w: claims are incomplete", apperrors.ErrTokenMalformed)
	}

	return claims, nil
}

// Parse and validate refresh token
func (m *TokenManager) VerifyRefresh(refresh string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if err := m.parse(refresh, claims); err != nil {
		return nil, err
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject is empty", apperrors.ErrTokenMalformed)
	}

	return claims, nil
}

// Digest is the only representation of a refresh token kept in storage
func (m *TokenManager) Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (m *TokenManager) parse(token string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock),
	)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", apperrors.ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	}
}
