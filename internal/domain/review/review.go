package review

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/product"
)

// ErrInvalidRating is returned when a rating falls outside 1..5.
var ErrInvalidRating = fmt.Errorf("rating must be between 1 and 5")

// Review is one user's review of one product. At most one review exists per
// (user, product) pair; resubmission overwrites rating and comment in place.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	UserName  string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines persistence operations for reviews.
type Repository interface {
	// Upsert inserts the review, or overwrites rating and comment when a row
	// for the same (product, user) already exists.
	Upsert(ctx context.Context, r *Review) (*Review, error)
	ListByProduct(ctx context.Context, productID string) ([]Review, error)
}

// Service validates and stores product reviews.
type Service struct {
	reviews  Repository
	products product.Repository
}

// NewService creates a review Service.
func NewService(reviews Repository, products product.Repository) *Service {
	return &Service{reviews: reviews, products: products}
}

// Submit upserts the user's review for the product. The product must exist
// and the rating must be within 1..5.
func (s *Service) Submit(ctx context.Context, userID, productID string, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	r := &Review{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
	}
	stored, err := s.reviews.Upsert(ctx, r)
	if err != nil {
		return nil, errors.Wrap(err, "upsert review")
	}
	return stored, nil
}

// ListByProduct returns a product's reviews, newest first.
func (s *Service) ListByProduct(ctx context.Context, productID string) ([]Review, error) {
	return s.reviews.ListByProduct(ctx, productID)
}
