// Package session holds the authentication token a management API client
// reuses for the lifetime of the client.
package session

import (
	"context"
	"errors"
	"sync"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
)

// ErrNoCredentials is returned when a token is needed but neither a static
// token nor a login function is configured.
var ErrNoCredentials = errors.New("session: no credentials configured")

// renewBackoff allows the first attempt plus one retry after a fresh login.
var renewBackoff = wait.Backoff{Steps: 2}

// LoginFunc exchanges configured credentials for a fresh token.
type LoginFunc func(ctx context.Context) (string, error)

// Session caches a bearer or API token. A static token is used as-is and never
// renewed; otherwise the token is obtained lazily through the login function.
type Session struct {
	mu     sync.Mutex
	token  string
	static bool
	login  LoginFunc
}

// NewStatic returns a session that always uses token.
func NewStatic(token string) *Session {
	return &Session{token: token, static: true}
}

// NewLogin returns a session that calls login on first use and after Invalidate.
func NewLogin(login LoginFunc) *Session {
	return &Session{login: login}
}

// Static reports whether the session uses a configured token.
func (s *Session) Static() bool {
	return s.static
}

// CanRenew reports whether a rejected token may be replaced by logging in again.
func (s *Session) CanRenew() bool {
	return !s.static && s.login != nil
}

// Token returns the cached token, logging in when none is cached.
// Concurrent callers share a single login.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}
	if s.static || s.login == nil {
		return "", ErrNoCredentials
	}
	token, err := s.login(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	return token, nil
}

// Invalidate drops token from the cache if it is still the current one.
// Static tokens are kept.
func (s *Session) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.static && s.token == token {
		s.token = ""
	}
}

// Do runs fn with the current token. If fn fails with an error wrapping
// unauthorized and the session is renewable, the token is dropped and fn runs
// exactly once more with a freshly obtained token.
func (s *Session) Do(ctx context.Context, unauthorized error, fn func(token string) error) error {
	retriable := func(err error) bool {
		return errors.Is(err, unauthorized) && s.CanRenew()
	}
	return retry.OnError(renewBackoff, retriable, func() error {
		token, err := s.Token(ctx)
		if err != nil {
			return err
		}
		err = fn(token)
		if errors.Is(err, unauthorized) {
			s.Invalidate(token)
		}
		return err
	})
}
