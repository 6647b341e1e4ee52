// Package jwt signs and parses dashboard session tokens.
package jwt

import (
	"time"

	"github.com/Laisky/errors/v2"
	jwtLib "github.com/golang-jwt/jwt/v5"
)

const minSecretLen = 16

// Signer issues HS256 tokens
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// New create signer, secret must be at least 16 bytes
func New(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < minSecretLen {
		return nil, errors.Errorf("jwt secret must be at least %d bytes", minSecretLen)
	}

	return &Signer{
		secret: secret,
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Sign issues a token for the user session valid for ttl
func (s *Signer) Sign(userID, role, sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := &UserClaims{
		RegisteredClaims: jwtLib.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwtLib.NewNumericDate(now),
			NotBefore: jwtLib.NewNumericDate(now),
			ExpiresAt: jwtLib.NewNumericDate(expiresAt),
		},
		Role:      role,
		SessionID: sessionID,
	}

	token, err := jwtLib.NewWithClaims(jwtLib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}

	return token, expiresAt, nil
}

// Parse verifies signature, method, issuer and time claims
func (s *Signer) Parse(token string) (*UserClaims, error) {
	claims := new(UserClaims)
	_, err := jwtLib.ParseWithClaims(token, claims,
		func(t *jwtLib.Token) (any, error) {
			return s.secret, nil
		},
		jwtLib.WithValidMethods([]string{jwtLib.SigningMethodHS256.Alg()}),
		jwtLib.WithIssuer(s.issuer),
		jwtLib.WithExpirationRequired(),
		jwtLib.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}

	if claims.Subject == "" || claims.SessionID == "" {
		return nil, errors.New("token misses subject or session")
	}

	return claims, nil
}
