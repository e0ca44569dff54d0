package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"atlasgym/internal/errs"
)

// Identity is who a credential check resolved to.
type Identity struct {
	UserID   string
	Username string
	Name     string
	Role     Role
	Hidden   []string
}

// Verifier checks a username/password pair. Implementations return
// errs.ErrUnauthenticated for unknown users and wrong passwords alike.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (*Identity, error)
}

// Account is a configured operator login that never lives in the store.
type Account struct {
	Username string
	Name     string
	Role     Role
	Secret   Secret
}

// StaticVerifier checks configured operator accounts.
type StaticVerifier struct {
	accounts map[string]Account
}

func NewStaticVerifier(accounts ...Account) *StaticVerifier {
	v := &StaticVerifier{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		if a.Username != "" {
			v.accounts[strings.ToLower(a.Username)] = a
		}
	}
	return v
}

// Has reports whether username names a configured account.
func (v *StaticVerifier) Has(username string) bool {
	if v == nil {
		return false
	}
	_, ok := v.accounts[strings.ToLower(strings.TrimSpace(username))]
	return ok
}

func (v *StaticVerifier) Verify(ctx context.Context, username, password string) (*Identity, error) {
	a, ok := v.accounts[strings.ToLower(strings.TrimSpace(username))]
	if !ok || !a.Secret.Matches(password) {
		return nil, errs.ErrUnauthenticated
	}
	name := a.Name
	if name == "" {
		name = a.Username
	}
	return &Identity{Username: a.Username, Name: name, Role: a.Role}, nil
}

// UserSource looks users up by username.
type UserSource interface {
	ByUsername(username string) (User, bool)
}

// StoreVerifier checks rows of the users collection.
type StoreVerifier struct {
	users UserSource
}

func NewStoreVerifier(users UserSource) *StoreVerifier {
	return &StoreVerifier{users: users}
}

func (v *StoreVerifier) Verify(ctx context.Context, username, password string) (*Identity, error) {
	u, ok := v.users.ByUsername(strings.TrimSpace(username))
	if !ok {
		return nil, errs.ErrUnauthenticated
	}
	match, err := VerifyPassword(password, u.Salt, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", u.Username, errs.ErrUnauthenticated)
	}
	if !match {
		return nil, errs.ErrUnauthenticated
	}
	role := u.Role
	if !role.Valid() {
		role = RoleStaff
	}
	return &Identity{UserID: u.ID, Username: u.Username, Name: u.Name, Role: role, Hidden: u.HiddenSections}, nil
}

// Chain tries each verifier in order and returns the first success.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, username, password string) (*Identity, error) {
	for _, v := range c {
		id, err := v.Verify(ctx, username, password)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, errs.ErrUnauthenticated) {
			return nil, err
		}
	}
	return nil, errs.ErrUnauthenticated
}
