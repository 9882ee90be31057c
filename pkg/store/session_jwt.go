package store

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"docvault/internal/util"
)

const (
	defaultJWTIssuer   = "docvault"
	defaultJWTAudience = "docvault-api"

	// Owner re-authentication tokens are deliberately short-lived.
	ownerSessionTTL = time.Hour
)

var defaultJWTLeeway = 30 * time.Second

// JWTSessionStore issues and validates HS256 JWT tokens. Owner-elevated
// sessions carry an extra claim and a one-hour lifetime regardless of the
// normal session TTL.
type JWTSessionStore struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
	leeway   time.Duration
}

type sessionClaims struct {
	Owner bool `json:"owner,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTSessionStore builds a stateless JWT session store.
func NewJWTSessionStore(secret string, ttl time.Duration) *JWTSessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTSessionStore{
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   defaultJWTIssuer,
		audience: defaultJWTAudience,
		leeway:   defaultJWTLeeway,
	}
}

// NewSession creates a signed JWT for the user ID.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	return s.sign(userID, s.ttl, false)
}

// NewOwnerSession creates a one-hour owner-elevated JWT, minted only after
// phone+PIN re-authentication succeeds.
func (s *JWTSessionStore) NewOwnerSession(userID string) (string, error) {
	return s.sign(userID, ownerSessionTTL, true)
}

// TokenIdentity validates a JWT and returns the caller identity.
func (s *JWTSessionStore) TokenIdentity(token string) (Identity, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, false, errors.New("invalid token format")
	}
	claims := sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return Identity{}, false, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, false, errors.New("token subject missing")
	}
	return Identity{UserID: claims.Subject, Owner: claims.Owner}, true, nil
}

func (s *JWTSessionStore) sign(userID string, ttl time.Duration, owner bool) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("jwt store not configured")
	}
	now := time.Now().UTC()
	claims := sessionClaims{
		Owner: owner,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        util.NewID(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
