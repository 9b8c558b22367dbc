package api

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"piawg/internal/pia"
)

const sessionTTL = 12 * time.Hour

var errUnauthorized = pia.AuthError{Msg: "unauthorized"}

// Claims identify an API session. The PIA token itself stays on the
// server; the JWT only carries the session id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// session is the server-side state of one browser login.
type session struct {
	username string
	piaToken string
	expires  time.Time
	// regions is the catalog snapshot the client last listed; indexes sent
	// back refer to it.
	regions []pia.Region
}

type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	byID map[string]*session
}

// NewSessions signs tokens with secret, or with a random per-process key
// when secret is empty.
func NewSessions(secret string) (*Sessions, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}
	return &Sessions{secret: key, ttl: sessionTTL, now: time.Now, byID: map[string]*session{}}, nil
}

func (s *Sessions) Issue(username, piaToken string) (string, error) {
	id := uuid.NewString()
	now := s.now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}

	s.mu.Lock()
	for old, sess := range s.byID {
		if now.After(sess.expires) {
			delete(s.byID, old)
		}
	}
	s.byID[id] = &session{username: username, piaToken: piaToken, expires: now.Add(s.ttl)}
	s.mu.Unlock()
	return signed, nil
}

func (s *Sessions) Validate(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, errUnauthorized
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errUnauthorized
	}

	s.mu.Lock()
	_, live := s.byID[claims.ID]
	s.mu.Unlock()
	if !live {
		return Claims{}, errUnauthorized
	}
	return *claims, nil
}

func (s *Sessions) Revoke(id string) {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}

func (s *Sessions) token(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return "", errUnauthorized
	}
	return sess.piaToken, nil
}

func (s *Sessions) setRegions(id string, regions []pia.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		sess.regions = regions
	}
}

func (s *Sessions) regions(id string) []pia.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		return sess.regions
	}
	return nil
}

type claimsKey struct{}

func contextWithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func claimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok
}

