package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// JWTConfig holds the two signing secrets and lifetimes.
type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// JWTIssuer implements ports.TokenIssuer with HS256 tokens. Access and refresh
// tokens use separate secrets and audiences, so one can never stand in for
// the other.
type JWTIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewJWTIssuer(cfg JWTConfig) *JWTIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &JWTIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           cfg.Clock,
	}
}

// IssuePair signs a fresh access and refresh token for userID.
func (i *JWTIssuer) IssuePair(userID string) (domain.TokenPair, error) {
	now := i.now()
	access, err := Sign(userID, audienceAccess, i.accessSecret, i.accessTTL, now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := Sign(userID, audienceRefresh, i.refreshSecret, i.refreshTTL, now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *JWTIssuer) ParseAccess(token string) (*domain.TokenClaims, error) {
	return Verify(token, audienceAccess, i.accessSecret, i.now)
}

func (i *JWTIssuer) ParseRefresh(token string) (*domain.TokenClaims, error) {
	return Verify(token, audienceRefresh, i.refreshSecret, i.now)
}

// Sign mints an HS256 token carrying only the subject id plus standard claims.
// Every token gets a random jti so two tokens for the same subject minted in
// the same second still differ.
func Sign(subject, audience string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return t.SignedString(secret)
}

// Verify checks signature, algorithm, audience and expiry. Expiry is reported
// as domain.ErrExpiredToken, every other failure as domain.ErrInvalidToken.
func Verify(token, audience string, secret []byte, now func() time.Time) (*domain.TokenClaims, error) {
	if now == nil {
		now = time.Now
	}
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &rc, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredToken
		}
		return nil, domain.ErrInvalidToken
	}
	if rc.Subject == "" || rc.IssuedAt == nil {
		return nil, domain.ErrInvalidToken
	}

	return &domain.TokenClaims{
		Subject:   rc.Subject,
		TokenID:   rc.ID,
		IssuedAt:  rc.IssuedAt.Time,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
