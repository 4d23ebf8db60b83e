package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/review"
)

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toReviewResponse(rev *review.Review) reviewResponse {
	return reviewResponse{
		ID:        rev.ID,
		ProductID: rev.ProductID,
		UserID:    rev.UserID,
		UserName:  rev.UserName,
		Rating:    rev.Rating,
		Comment:   rev.Comment,
		CreatedAt: rev.CreatedAt,
		UpdatedAt: rev.UpdatedAt,
	}
}

// submitReview handles POST /products/{id}/reviews. Resubmitting overwrites
// the caller's existing review of the product.
func (h *Handler) submitReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}

	rev, err := h.reviews.Submit(r.Context(), identity.UserID, chi.URLParam(r, "id"), req.Rating, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, review.ErrInvalidRating):
			respondError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, product.ErrNotFound):
			respondError(w, r, http.StatusNotFound, err.Error())
		default:
			serverError(w, r, err)
		}
		return
	}

	respond(w, r, http.StatusOK, toReviewResponse(rev))
}

// listReviews handles GET /products/{id}/reviews.
func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListByProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		serverError(w, r, err)
		return
	}

	resp := make([]reviewResponse, len(reviews))
	for i := range reviews {
		resp[i] = toReviewResponse(&reviews[i])
	}
	respond(w, r, http.StatusOK, resp)
}
