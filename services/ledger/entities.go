package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation covers bad user input. The wrapped message names the field.
	ErrValidation = errors.New("validation failed")
	// ErrProductNotFound is recoverable: sale history can outlive the product
	// it refers to.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock aborts the operation before any mutation.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// LowStockThreshold marks products that are about to run out in listings.
const LowStockThreshold = 2

// Product is the authoritative stock ledger record.
type Product struct {
	ID       int64           `json:"id" db:"id"`
	Name     string          `json:"name" db:"name"`
	Price    decimal.Decimal `json:"price" db:"price"`
	Quantity int             `json:"quantity" db:"quantity"`
}

// NewProduct validates user input and builds a ledger record without identity.
// The identity is assigned by the store on insert.
func NewProduct(name string, price decimal.Decimal, quantity int) (*Product, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be greater than zero", ErrValidation)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}

	return &Product{
		Name:     name,
		Price:    price,
		Quantity: quantity,
	}, nil
}

// OutOfStock reports whether the product has no units left.
func (p *Product) OutOfStock() bool {
	return p.Quantity <= 0
}

// LowStock reports whether the product is close to running out.
func (p *Product) LowStock() bool {
	return p.Quantity > 0 && p.Quantity <= LowStockThreshold
}

// SaleEvent is one persisted record of a single unit sold. Rows are immutable
// once written; reconciliation deletes or inserts whole rows, it never edits
// one in place.
type SaleEvent struct {
	ID        int64           `json:"id" db:"id"`
	ProductID int64           `json:"product_id" db:"product_id"` // weak reference, the product may be deleted later
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// AggregatedSale is the derived, grouped-by-name view over sale events. It is
// never persisted; edits against it are translated back into row inserts and
// deletes by the reconciler.
type AggregatedSale struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// GroupSales folds sale events into aggregated views keyed by product name.
// Grouping by name (not id) is deliberate: two products sharing a name merge
// into one line. Groups keep the order in which a name first appears in the
// input, and the grand total across all groups is returned alongside.
func GroupSales(events []SaleEvent) ([]AggregatedSale, decimal.Decimal) {
	grouped := make(map[string]int, len(events))
	views := make([]AggregatedSale, 0, len(events))
	total := decimal.Zero

	for _, ev := range events {
		idx, ok := grouped[ev.Name]
		if !ok {
			views = append(views, AggregatedSale{Name: ev.Name})
			idx = len(views) - 1
			grouped[ev.Name] = idx
		}
		views[idx].Quantity++
		views[idx].TotalPrice = views[idx].TotalPrice.Add(ev.Price)
		total = total.Add(ev.Price)
	}

	return views, total
}
