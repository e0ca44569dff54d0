package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"atlasgym/internal/errs"

	"golang.org/x/time/rate"
)

// Challenge is the shared secondary secret destructive actions ask for.
type Challenge struct {
	secret Secret
}

func NewChallenge(secret Secret) *Challenge { return &Challenge{secret: secret} }

// Check returns false with no error when answer is nil (the operator
// cancelled) and ErrChallengeFailed when it does not match.
func (c *Challenge) Check(answer *string) (bool, error) {
	if answer == nil {
		return false, nil
	}
	if c == nil || !c.secret.Matches(*answer) {
		return false, errs.ErrChallengeFailed
	}
	return true, nil
}

// Authenticator turns credentials into sessions.
type Authenticator struct {
	verifier Verifier
	tokens   *Tokens
	perMin   int
	now      func() time.Time

	mu        sync.Mutex
	limiters  map[string]*loginLimiter
	lastSweep time.Time
}

type loginLimiter struct {
	*rate.Limiter
	seen time.Time
}

// limiterIdle is how long a bucket takes to refill completely. An entry
// untouched for that long is indistinguishable from a new one.
const limiterIdle = time.Minute

func NewAuthenticator(v Verifier, tokens *Tokens, loginsPerMinute int) *Authenticator {
	if loginsPerMinute <= 0 {
		loginsPerMinute = 5
	}
	return &Authenticator{
		verifier: v,
		tokens:   tokens,
		perMin:   loginsPerMinute,
		now:      time.Now,
		limiters: map[string]*loginLimiter{},
	}
}

// allow takes one login attempt for username, dropping limiters that have
// been idle long enough to be full again.
func (a *Authenticator) allow(username string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if now.Sub(a.lastSweep) >= limiterIdle {
		for k, l := range a.limiters {
			if now.Sub(l.seen) >= limiterIdle {
				delete(a.limiters, k)
			}
		}
		a.lastSweep = now
	}
	l, ok := a.limiters[username]
	if !ok {
		l = &loginLimiter{Limiter: rate.NewLimiter(rate.Every(limiterIdle/time.Duration(a.perMin)), a.perMin)}
		a.limiters[username] = l
	}
	l.seen = now
	return l.AllowN(now, 1)
}

// Login verifies credentials and returns the session with its bearer token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Session, string, error) {
	key := strings.ToLower(strings.TrimSpace(username))
	if !a.allow(key, a.now()) {
		return Session{}, "", fmt.Errorf("login %s: %w", key, errs.ErrRateLimited)
	}

	id, err := a.verifier.Verify(ctx, username, password)
	if err != nil {
		slog.Warn("login rejected", "username", key)
		return Session{}, "", err
	}

	s := Session{
		UserID:   id.UserID,
		Username: id.Username,
		Name:     id.Name,
		Role:     id.Role,
		Hidden:   id.Hidden,
		IssuedAt: a.now(),
	}
	token, err := a.tokens.Issue(s)
	if err != nil {
		return Session{}, "", err
	}
	slog.Info("login", "username", s.Username, "role", s.Role)
	return s, token, nil
}
