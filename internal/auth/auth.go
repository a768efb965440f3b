package auth

import "time"

type Authenticator interface {
	GenerateToken(p Principal, ttl time.Duration) (string, error)
	ValidateToken(token string) (*Claims, error)
}

// Principal is the identity a token is issued for. Role and permissions are
// not part of it; they are read from the membership on every request.
type Principal struct {
	TenantID    int64
	PrincipalID int64
}
