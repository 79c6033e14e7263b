package auth

import (
	"time"

	"github.com/NordCoder/Aurum/internal/domain/user"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Principal is the verified identity carried by a token.
type Principal struct {
	SubjectID int64
	Role      user.Role
	TokenID   string
	ExpiresAt time.Time
}

// Pair is a freshly minted access and refresh token.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
