package shop

import (
	"context"
	"time"

	"atlasgym/internal/auth"
	"atlasgym/internal/ledger"
	"atlasgym/internal/store"
)

// Service defines the store operations.
type Service interface {
	Create(ctx context.Context, s auth.Session, p Product) (*Product, error)
	Delete(ctx context.Context, s auth.Session, id string) error
	AddStock(ctx context.Context, s auth.Session, id string, qty int) (*Product, error)
	// Checkout sells the cart: stock decrements and the TIENDA ledger line
	// commit together or not at all.
	Checkout(ctx context.Context, s auth.Session, cart []CartLine) (*Sale, error)
	Get(id string) (Product, bool)
	// Inventory returns every product ordered by name.
	Inventory() []Product
	LowStock() []Product
	Close()
}

// Deps are the collaborators of the store.
type Deps struct {
	Store  store.Store
	Ledger ledger.Service
	Now    func() time.Time
}
