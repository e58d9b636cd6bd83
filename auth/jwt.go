package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xraph/rentledger/id"
)

// ErrInvalidToken is returned for any bearer token that does not yield a caller.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the token payload. Subject carries the student ID; it may be
// empty for manager and staff tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier turns HS256 bearer tokens into callers.
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// JWTOption configures a JWTVerifier.
type JWTOption func(*JWTVerifier)

// WithIssuer requires tokens to carry iss.
func WithIssuer(iss string) JWTOption {
	return func(v *JWTVerifier) { v.issuer = iss }
}

// WithTimeFunc sets the clock used for exp/nbf checks.
func WithTimeFunc(now func() time.Time) JWTOption {
	return func(v *JWTVerifier) { v.now = now }
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret string, opts ...JWTOption) *JWTVerifier {
	v := &JWTVerifier{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses and validates a raw token.
func (v *JWTVerifier) Verify(raw string) (Caller, error) {
	if len(v.secret) == 0 {
		return Caller{}, fmt.Errorf("%w: no secret configured", ErrInvalidToken)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c := Caller{Role: role}
	if claims.Subject != "" {
		sid, err := id.ParseStudentID(claims.Subject)
		if err != nil {
			return Caller{}, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
		}
		c.StudentID = sid
	}
	if role == RoleStudent && c.StudentID.IsNil() {
		return Caller{}, fmt.Errorf("%w: student token without subject", ErrInvalidToken)
	}
	return c, nil
}

// VerifyHeader extracts a Bearer token from an Authorization header value.
func (v *JWTVerifier) VerifyHeader(header string) (Caller, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return Caller{}, fmt.Errorf("%w: missing bearer token", ErrInvalidToken)
	}
	return v.Verify(strings.TrimSpace(token))
}

// Issue signs a token for c that expires after ttl.
func (v *JWTVerifier) Issue(c Caller, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Role: string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.StudentID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
