package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/review"
)

const (
	// One review per (product, user); resubmission overwrites in place.
	upsertReviewSQL = `INSERT INTO reviews (id, product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, user_id)
		DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = now()
		RETURNING id, created_at, updated_at`

	listReviewsByProductSQL = `SELECT r.id, r.product_id, r.user_id, u.name, r.rating, r.comment, r.created_at, r.updated_at
		FROM reviews r JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC`
)

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository backed by PostgreSQL.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Upsert inserts or overwrites the user's review of the product and returns
// the stored row. The returned ID is the existing row's on conflict.
func (r *ReviewRepository) Upsert(ctx context.Context, rev *review.Review) (*review.Review, error) {
	stored := *rev
	err := r.pool.QueryRow(ctx, upsertReviewSQL,
		rev.ID, rev.ProductID, rev.UserID, rev.Rating, rev.Comment,
	).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting review for product %q: %w", rev.ProductID, err)
	}
	return &stored, nil
}

// ListByProduct returns a product's reviews with reviewer names, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]review.Review, error) {
	rows, err := r.pool.Query(ctx, listReviewsByProductSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews for product %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (review.Review, error) {
		var rev review.Review
		err := row.Scan(
			&rev.ID, &rev.ProductID, &rev.UserID, &rev.UserName,
			&rev.Rating, &rev.Comment, &rev.CreatedAt, &rev.UpdatedAt,
		)
		return rev, err
	})
}
