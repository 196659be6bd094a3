package domain

import "time"

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is what a successful login, verification or password change yields.
type Session struct {
	Tokens TokenPair
	User   *User
}

// TokenClaims is the verified content of an access or refresh token.
type TokenClaims struct {
	Subject   string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
