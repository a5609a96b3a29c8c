package tokenmanager

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
)

const (
	MinSecretKeyLen = 32

	defaultAccessTokenTTL  = 30 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var signingMethod = jwt.SigningMethodHS256

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string           `json:"role"`
	Kind models.TokenKind `json:"typ"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be at least MinSecretKeyLen bytes
	SecretKey string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Clock. time.Now if not set
	Now func() time.Time
}

// TokenManager holds no mutable state and is safe for concurrent use.
// Key rotation means building a new manager and swapping it in.
type TokenManager struct {
	// Secret key to sign and verify tokens
	key []byte

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	if len(cfg.SecretKey) < MinSecretKeyLen {
		return nil, fmt.Errorf("%w: secret key must be at least %d bytes, got %d", apperrors.ErrConfiguration, MinSecretKeyLen, len(cfg.SecretKey))
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, fmt.Errorf("%w: token lifetimes must not be negative", apperrors.ErrConfiguration)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		key:        []byte(cfg.SecretKey),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// Issue access and refresh tokens for the same subject and role
func (m *TokenManager) IssuePair(subjectID string, role string) (models.TokenPair, error) {
	var pair models.TokenPair
	now := m.now().Truncate(time.Second)

	access, err := m.issue(subjectID, role, models.TokenKindAccess, now, m.accessTTL)
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	refresh, err := m.issue(subjectID, role, models.TokenKindRefresh, now, m.refreshTTL)
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) issue(subjectID, role string, kind models.TokenKind, now time.Time, ttl time.Duration) (models.IssuedToken, error) {
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		signingMethod,
		tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   subjectID,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Role: role,
			Kind: kind,
		},
	)

	value, err := token.SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, err
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Parse and validate token of any kind
// Checking the kind is up to the caller
func (m *TokenManager) Parse(token string) (models.Claims, error) {
	claims := &tokenClaims{}

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) { return m.key, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}

	switch {
	case claims.Subject == "":
		return models.Claims{}, fmt.Errorf("%w: subject is missing", apperrors.ErrInvalidToken)
	case claims.Kind != models.TokenKindAccess && claims.Kind != models.TokenKindRefresh:
		return models.Claims{}, fmt.Errorf("%w: unknown token kind %q", apperrors.ErrInvalidToken, claims.Kind)
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return models.Claims{
		TokenID:   claims.ID,
		SubjectID: claims.Subject,
		Role:      claims.Role,
		Kind:      claims.Kind,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
