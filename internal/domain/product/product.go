package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Stock is the
// number of units available for reservation; it never goes below zero and is
// only ever decremented through Inventory.TryReserve.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURLs   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reservation is the snapshot returned by a successful TryReserve. UnitPrice
// is the catalog price at the moment stock was decremented; order lines copy
// it so later price changes never alter historical orders.
type Reservation struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Inventory is the atomic stock primitive. Implementations must guarantee
// that concurrent TryReserve calls for the same product serialize on the
// product row and that stock never goes negative.
type Inventory interface {
	// TryReserve decrements stock by quantity iff current stock >= quantity,
	// returning the price snapshot. An unknown product, insufficient stock,
	// or a quantity < 1 yields an order-level insufficient stock error.
	TryReserve(ctx context.Context, productID string, quantity int) (*Reservation, error)

	// Release adds quantity back to stock unconditionally. Used only on the
	// order placement rollback path.
	Release(ctx context.Context, productID string, quantity int) error
}

// Repository defines catalog operations for products.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
}
