package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for order validation and lookup.
var (
	ErrEmptyItems   = fmt.Errorf("items required")
	ErrBlankAddress = fmt.Errorf("shipping address required")
	ErrNotFound     = fmt.Errorf("order not found")
)

// InsufficientStockError indicates a line item could not be reserved, either
// because the product does not exist or because fewer units remain than
// requested. ProductID names the first line that failed.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidTransitionError indicates a requested status change is not the
// immediate successor of the order's current status.
type InvalidTransitionError struct {
	From      Status
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.Requested)
}

// Line is a single immutable line item of a committed order. Name and
// UnitPrice are snapshots taken at reservation time.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is a committed customer order. Lines, Total, and ShippingAddress are
// immutable after creation; only Status changes, through Service.Advance.
type Order struct {
	ID              string
	UserID          string
	Lines           []Line
	Total           decimal.Decimal
	ShippingAddress string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UserSummary carries the owning user's display data for admin listings.
type UserSummary struct {
	ID    string
	Name  string
	Email string
}

// AdminOrder is an order with its owning user attached.
type AdminOrder struct {
	Order
	User UserSummary
}

// Repository defines persistence operations for the order ledger. Create is
// append-only; UpdateStatus is the only mutation and must be conditional on
// the expected current status.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]AdminOrder, error)

	// UpdateStatus sets the order's status to next iff it currently equals
	// expected, returning the updated order. It returns ErrNotFound for an
	// unknown order and ErrStatusConflict when the row's status no longer
	// matches expected.
	UpdateStatus(ctx context.Context, id string, expected, next Status) (*Order, error)
}

// ErrStatusConflict is returned by Repository.UpdateStatus when the order's
// status changed between read and write. Service.Advance surfaces it as an
// InvalidTransitionError.
var ErrStatusConflict = fmt.Errorf("order status changed concurrently")
