package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, lines, total, shipping_address, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	getOrderByIDSQL = `SELECT id, user_id, lines, total, shipping_address, status, created_at, updated_at
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, user_id, lines, total, shipping_address, status, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listAllOrdersSQL = `SELECT o.id, o.user_id, o.lines, o.total, o.shipping_address, o.status, o.created_at, o.updated_at,
			u.name, u.email
		FROM orders o JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC`

	// Conditional on the expected current status; a concurrent advance that
	// got there first leaves this update with zero rows.
	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING id, user_id, lines, total, shipping_address, status, created_at, updated_at`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements the order ledger backed by PostgreSQL. Order
// lines are stored as a JSONB document on the order row, so the ledger write
// is a single atomic insert.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order as one row.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}

	err = r.pool.QueryRow(ctx, createOrderSQL,
		o.ID, o.UserID, linesJSON, o.Total, o.ShippingAddress, o.Status,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListAll returns every order with the owning user's summary, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.AdminOrder, error) {
	rows, err := r.pool.Query(ctx, listAllOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.AdminOrder, error) {
		var (
			ao    order.AdminOrder
			lines []byte
		)
		err := row.Scan(
			&ao.ID, &ao.UserID, &lines, &ao.Total, &ao.ShippingAddress, &ao.Status,
			&ao.CreatedAt, &ao.UpdatedAt,
			&ao.User.Name, &ao.User.Email,
		)
		if err != nil {
			return ao, err
		}
		ao.User.ID = ao.UserID
		if err := json.Unmarshal(lines, &ao.Lines); err != nil {
			return ao, fmt.Errorf("unmarshaling order lines: %w", err)
		}
		return ao, nil
	})
}

// UpdateStatus conditionally moves an order from expected to next. Zero rows
// means either the order is unknown or its status changed underneath us; the
// existence probe tells the two apart.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, expected, next order.Status) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateOrderStatusSQL, id, expected, next)
	if err != nil {
		return nil, fmt.Errorf("updating status of order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating status of order %q: %w", id, err)
	}

	var exists bool
	if probeErr := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); probeErr != nil {
		return nil, fmt.Errorf("updating status of order %q: %w", id, probeErr)
	}
	if !exists {
		return nil, order.ErrNotFound
	}
	return nil, order.ErrStatusConflict
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o     order.Order
		lines []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &lines, &o.Total, &o.ShippingAddress, &o.Status,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return o, fmt.Errorf("unmarshaling order lines: %w", err)
	}
	return o, nil
}
