package ports

import "github.com/instastick/storefront-auth/internal/core/domain"

// PasswordHasher is a one-way salted hash.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, hash string) bool
}

// TokenIssuer signs and verifies the access/refresh pair.
type TokenIssuer interface {
	IssuePair(userID string) (domain.TokenPair, error)
	ParseAccess(token string) (*domain.TokenClaims, error)
	ParseRefresh(token string) (*domain.TokenClaims, error)
}
