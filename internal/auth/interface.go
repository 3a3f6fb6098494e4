package auth

// JWTVerifier verifies bearer tokens for the HTTP middleware.
type JWTVerifier interface {
	// VerifyToken validates a JWT and returns its claims. Any failure is
	// reported as domain.ErrUnauthorized.
	VerifyToken(tokenString string) (*Claims, error)

	// Close releases resources held by the verifier.
	Close() error
}
