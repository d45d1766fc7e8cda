package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: OrganisationID must be present for all non-platform
// activity. Hidden/platform override capabilities should be represented via
// separate server-side authorization checks.
type Claims struct {
	jwt.RegisteredClaims

	UserID         string    `json:"user_id"`
	OrganisationID string    `json:"organisation_id"`
	Role           string    `json:"role"`
	TokenType      TokenType `json:"token_type"`
}
