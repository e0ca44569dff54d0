package shop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/ledger"
	"atlasgym/internal/projection"
	"atlasgym/internal/store"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type service struct {
	// mu serializes stock read-modify-write within this process.
	mu       sync.Mutex
	store    store.Store
	ledger   ledger.Service
	products *projection.Collection[Product]
	audit    audit.Recorder
	now      func() time.Time
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewService follows the products collection.
func NewService(ctx context.Context, d Deps, rec audit.Recorder) (Service, error) {
	c, err := projection.New(ctx, d.Store, store.Products, func(p *Product, id string) { p.ID = id })
	if err != nil {
		return nil, fmt.Errorf("follow products: %w", err)
	}
	s := &service{
		store:    d.Store,
		ledger:   d.Ledger,
		products: c,
		audit:    rec,
		now:      d.Now,
		validate: validator.New(),
		tracer:   otel.Tracer("atlasgym/shop"),
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func fieldError(index int, err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return &errs.ValidationError{Index: index, Field: "body", Reason: "is invalid"}
	}
	f := ve[0]
	reason := "is invalid"
	switch f.Tag() {
	case "required":
		reason = "is required"
	case "gt":
		reason = "must be greater than " + f.Param()
	case "gte":
		reason = "must be at least " + f.Param()
	}
	return &errs.ValidationError{Index: index, Field: strings.ToLower(f.Field()), Reason: reason}
}

func (s *service) Create(ctx context.Context, sess auth.Session, p Product) (*Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.ID = ""
	if err := s.validate.Struct(p); err != nil {
		return nil, fieldError(-1, err)
	}
	id, err := s.store.Add(ctx, store.Products, p)
	if err != nil {
		return nil, fmt.Errorf("create product %s: %w", p.Name, err)
	}
	p.ID = id
	s.audit.Record(ctx, audit.ProductCreated, sess.Username, fmt.Sprintf("Se creó el producto %s.", p.Name))
	return &p, nil
}

func (s *service) Delete(ctx context.Context, sess auth.Session, id string) error {
	if err := auth.RequireElevated(sess, "delete product"); err != nil {
		return err
	}
	p, ok := s.products.Get(id)
	if !ok {
		return errs.NotFound("product", id)
	}
	if err := s.store.Delete(ctx, store.Join(store.Products, id)); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	s.audit.Record(ctx, audit.ProductDeleted, sess.Username, fmt.Sprintf("Se eliminó el producto %s.", p.Name))
	return nil
}

func (s *service) AddStock(ctx context.Context, sess auth.Session, id string, qty int) (*Product, error) {
	if qty <= 0 {
		return nil, errs.Invalid("qty", "must be greater than 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products.Get(id)
	if !ok {
		return nil, errs.NotFound("product", id)
	}
	p.Stock += qty
	if err := s.store.Update(ctx, store.Join(store.Products, id), map[string]any{"stock": p.Stock}); err != nil {
		return nil, fmt.Errorf("restock %s: %w", id, err)
	}
	s.audit.Record(ctx, audit.StockAdded, sess.Username, fmt.Sprintf("Se añadieron %d unidades de %s.", qty, p.Name))
	return &p, nil
}

func (s *service) Checkout(ctx context.Context, sess auth.Session, cart []CartLine) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "shop.checkout", trace.WithAttributes(attribute.Int("cart.lines", len(cart))))
	defer span.End()

	if len(cart) == 0 {
		return nil, errs.Invalid("cart", "is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Lines naming the same product are merged so stock is checked once.
	wanted := map[string]int{}
	var order []string
	for i, l := range cart {
		if err := s.validate.Struct(l); err != nil {
			return nil, fieldError(i, err)
		}
		if _, ok := s.products.Get(l.ProductID); !ok {
			return nil, errs.NotFound("product", l.ProductID)
		}
		if _, seen := wanted[l.ProductID]; !seen {
			order = append(order, l.ProductID)
		}
		wanted[l.ProductID] += l.Qty
		if p, _ := s.products.Get(l.ProductID); wanted[l.ProductID] > p.Stock {
			return nil, &errs.ValidationError{Index: i, Field: "qty", Reason: fmt.Sprintf("exceeds stock of %d for %s", p.Stock, p.Name)}
		}
	}

	now := s.now()
	sale := &Sale{Cashier: sess.Username, Date: now}
	ops := make([]store.Op, 0, len(order)+1)
	for _, id := range order {
		p, _ := s.products.Get(id)
		qty := wanted[id]
		line := SaleLine{ProductID: id, Name: p.Name, Qty: qty, Price: p.Price, Subtotal: p.Price * float64(qty)}
		sale.Lines = append(sale.Lines, line)
		sale.Total += line.Subtotal
		ops = append(ops, store.UpdateOp(store.Join(store.Products, id), map[string]any{"stock": p.Stock - qty}))
	}
	postOp, ledgerID, ok := s.ledger.PostOp(ledger.TypeTienda, sale.Total, audit.ShopSale, sess.Username, now)
	if ok {
		ops = append(ops, postOp)
		sale.LedgerID = ledgerID
	}
	if err := s.store.Commit(ctx, ops...); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("checkout: %w", err)
	}
	span.SetAttributes(attribute.Float64("sale.total", sale.Total))
	s.audit.Record(ctx, audit.ShopSale, sess.Username, fmt.Sprintf("Se realizó una venta en la tienda por un total de $%.2f.", sale.Total))
	return sale, nil
}

func (s *service) Get(id string) (Product, bool) { return s.products.Get(id) }

func (s *service) Inventory() []Product {
	out := s.products.All()
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

func (s *service) LowStock() []Product {
	out := []Product{}
	for _, p := range s.Inventory() {
		if p.Low() {
			out = append(out, p)
		}
	}
	return out
}

func (s *service) Close() { s.products.Close() }
