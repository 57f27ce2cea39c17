package auth

import "lumina/internal/domain/models"

// JWTVerifier validates bearer tokens and extracts user claims.
type JWTVerifier interface {
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)
	Close() error
}
