package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, price, stock, image_urls, created_at, updated_at
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, description, price, stock, image_urls, created_at, updated_at
		FROM products WHERE id = $1`

	createProductSQL = `INSERT INTO products (id, name, description, price, stock, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6)`

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, price = $4, stock = $5, image_urls = $6, updated_at = now()
		WHERE id = $1`

	// The stock guard and the decrement are one statement, so concurrent
	// reservations for the same product serialize on the row and stock can
	// never go negative.
	tryReserveSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING name, price`

	releaseSQL = `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Inventory  = (*ProductRepository)(nil)
)

// ProductRepository implements the product catalog and the atomic inventory
// primitives backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	urls, err := json.Marshal(p.ImageURLs)
	if err != nil {
		return fmt.Errorf("marshaling image urls: %w", err)
	}

	_, err = r.pool.Exec(ctx, createProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, urls,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update overwrites a product row. Stock written here is an absolute admin
// value; relative changes go through TryReserve and Release only.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	urls, err := json.Marshal(p.ImageURLs)
	if err != nil {
		return fmt.Errorf("marshaling image urls: %w", err)
	}

	ct, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, urls,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// TryReserve atomically decrements stock by quantity iff enough units remain,
// returning the name and price snapshot for the order line. Unknown products
// and insufficient stock both report order.InsufficientStockError; the stock
// check never caches between requests — every call re-reads the row.
func (r *ProductRepository) TryReserve(ctx context.Context, productID string, quantity int) (*product.Reservation, error) {
	if quantity < 1 {
		return nil, &order.InsufficientStockError{ProductID: productID}
	}

	res := product.Reservation{ProductID: productID, Quantity: quantity}
	err := r.pool.QueryRow(ctx, tryReserveSQL, productID, quantity).Scan(&res.Name, &res.UnitPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.InsufficientStockError{ProductID: productID}
		}
		return nil, fmt.Errorf("reserving %d of product %q: %w", quantity, productID, err)
	}
	return &res, nil
}

// Release adds quantity back to stock. Compensation only; it must not fail
// for a product that a reservation succeeded against.
func (r *ProductRepository) Release(ctx context.Context, productID string, quantity int) error {
	_, err := r.pool.Exec(ctx, releaseSQL, productID, quantity)
	if err != nil {
		return fmt.Errorf("releasing %d of product %q: %w", quantity, productID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
		urls  []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &urls, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Price = price
	if err := json.Unmarshal(urls, &p.ImageURLs); err != nil {
		return p, fmt.Errorf("unmarshaling image urls: %w", err)
	}
	return p, nil
}
