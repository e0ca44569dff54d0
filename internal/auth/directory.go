package auth

import (
	"context"
	"strings"

	"atlasgym/internal/projection"
	"atlasgym/internal/store"
)

// Directory is the users projection.
type Directory struct {
	users *projection.Collection[User]
}

func NewDirectory(ctx context.Context, s store.Store) (*Directory, error) {
	c, err := projection.New(ctx, s, store.Users, func(u *User, id string) { u.ID = id })
	if err != nil {
		return nil, err
	}
	return &Directory{users: c}, nil
}

func (d *Directory) ByID(id string) (User, bool) { return d.users.Get(id) }

// ByUsername matches case-insensitively.
func (d *Directory) ByUsername(username string) (User, bool) {
	for _, u := range d.users.All() {
		if strings.EqualFold(u.Username, username) {
			return u, true
		}
	}
	return User{}, false
}

func (d *Directory) All() []User { return d.users.All() }

func (d *Directory) Close() { d.users.Close() }
