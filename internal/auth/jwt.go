package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in tokens.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleDevice  = "device"
)

// Principal is who a token is issued to. TeacherID is set for staff accounts
// linked to a teacher record.
type Principal struct {
	Subject   string
	Role      string
	TeacherID int64
}

// Claims represents JWT payload.
type Claims struct {
	Role      string `json:"role"`
	TeacherID int64  `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// Admin reports whether the token grants admin rights.
func (c Claims) Admin() bool { return c.Role == RoleAdmin }

// Issue signs an access token for p that expires after ttl. Production
// tokens come from the identity service; Issue serves tooling and tests.
func Issue(p Principal, issuer, key string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:      p.Role,
		TeacherID: p.TeacherID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, opts...)
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	return *claims, nil
}
