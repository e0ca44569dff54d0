// Package shop is the front-desk store: product stock and point-of-sale
// checkout.
package shop

import "time"

// LowStockThreshold is the stock level, inclusive, reported as low.
const LowStockThreshold = 3

// WalkInCustomer is the customer named on every shop receipt.
const WalkInCustomer = "Público General"

type Product struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gt=0"`
	Stock    int     `json:"stock" validate:"gte=0"`
	Category string  `json:"category,omitempty"`
	Icon     string  `json:"icon,omitempty"`
}

// Low reports whether the product needs restocking.
func (p Product) Low() bool { return p.Stock <= LowStockThreshold }

// CartLine asks for Qty units of a product.
type CartLine struct {
	ProductID string `json:"productId" validate:"required"`
	Qty       int    `json:"qty" validate:"gt=0"`
}

// SaleLine is a priced line of a completed sale.
type SaleLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
	Subtotal  float64 `json:"subtotal"`
}

type Sale struct {
	Lines    []SaleLine `json:"lines"`
	Total    float64    `json:"total"`
	LedgerID string     `json:"ledgerId"`
	Cashier  string     `json:"cashier"`
	Date     time.Time  `json:"date"`
}
