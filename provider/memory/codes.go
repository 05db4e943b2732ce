package memory

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/patrickmn/go-cache"
)

// Code purposes.
const (
	purposeSignUp        = "signUp"
	purposeResetPassword = "resetPassword"
	purposeSignIn        = "signIn"
	purposeAttribute     = "attribute"
)

// codeStore keeps one time codes until they are used or expire.
type codeStore struct {
	c *cache.Cache
}

func newCodeStore(ttl time.Duration) *codeStore {
	return &codeStore{c: cache.New(ttl, 2*ttl)}
}

func codeKey(purpose, username string) string {
	return purpose + ":" + username
}

func (s *codeStore) issue(purpose, username, code string) {
	s.c.Set(codeKey(purpose, username), code, cache.DefaultExpiration)
	s.c.Set(codeKey("last", username), code, cache.DefaultExpiration)
}

// check consumes the code on success.
func (s *codeStore) check(purpose, username, code string) error {
	key := codeKey(purpose, username)
	v, ok := s.c.Get(key)
	if !ok {
		return expiredCode()
	}
	if v.(string) != code {
		return codeMismatch()
	}
	s.c.Delete(key)
	return nil
}

func (s *codeStore) last(username string) (string, bool) {
	v, ok := s.c.Get(codeKey("last", username))
	if !ok {
		return "", false
	}
	return v.(string), true
}

func randomCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		panic(fmt.Sprintf("memory: reading random code: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}
