package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims is the payload of a session token.
type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// keyRing signs with the active key and verifies against every known key.
type keyRing struct {
	mu     sync.RWMutex
	active string
	keys   map[string][]byte
	jwks   *keyfunc.JWKS
}

func newKeyRing(kid string, key []byte) *keyRing {
	r := &keyRing{keys: map[string][]byte{}}
	r.rotate(kid, key)
	return r
}

// rotate adds key under kid and makes it the signing key.
func (r *keyRing) rotate(kid string, key []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[kid] = append([]byte(nil), key...)
	r.active = kid
	r.rebuild()
}

// retire drops kid so tokens signed with it stop verifying.
func (r *keyRing) retire(kid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if kid == r.active {
		return fmt.Errorf("%w: %q", ErrActiveKeyRetire, kid)
	}
	delete(r.keys, kid)
	r.rebuild()
	return nil
}

func (r *keyRing) rebuild() {
	given := make(map[string]keyfunc.GivenKey, len(r.keys))
	for kid, key := range r.keys {
		given[kid] = keyfunc.NewGivenHMAC(key, keyfunc.GivenKeyOptions{
			Algorithm: jwt.SigningMethodHS256.Alg(),
		})
	}
	r.jwks = keyfunc.NewGiven(given)
}

func (r *keyRing) sign(claims *sessionClaims) (string, error) {
	r.mu.RLock()
	kid, key := r.active, r.keys[r.active]
	r.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = kid
	return token.SignedString(key)
}

func (r *keyRing) keyfunc(t *jwt.Token) (any, error) {
	r.mu.RLock()
	jwks := r.jwks
	r.mu.RUnlock()
	return jwks.Keyfunc(t)
}

func (r *keyRing) kids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jwks.KIDs()
}

// issue mints a session token for a.
func (p *Provider) issue(a *account) (string, error) {
	now := p.now()
	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.Issuer,
			Subject:   a.id,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.SessionTTL)),
		},
		Username: a.username,
	}
	return p.keys.sign(claims)
}

// verify parses a session token and maps failures to provider errors.
func (p *Provider) verify(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, p.keys.keyfunc,
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, notAuthorized("Access Token has expired", err)
		}
		return nil, notAuthorized("Invalid session token", err)
	}
	return claims, nil
}

// RotateKey makes key the signing key. Tokens signed with earlier keys keep
// verifying until the key is retired.
func (p *Provider) RotateKey(kid string, key []byte) {
	p.keys.rotate(kid, key)
	p.logger.Info("session signing key rotated", "kid", kid)
}

// RetireKey stops accepting tokens signed with kid.
func (p *Provider) RetireKey(kid string) error {
	return p.keys.retire(kid)
}

// KeyIDs lists the verification keys currently accepted.
func (p *Provider) KeyIDs() []string {
	return p.keys.kids()
}

// SessionTTL reports the configured token lifetime.
func (p *Provider) SessionTTL() time.Duration {
	return p.cfg.SessionTTL
}
