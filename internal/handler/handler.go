// Package handler exposes the HTTP API. Handlers stay thin: decode, delegate
// to the domain services and repositories, map domain errors to the error
// envelope.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/review"
	"github.com/xenking/storefront/internal/domain/user"
)

const maxBodyBytes = 1 << 20

// Handler implements the HTTP API on top of the domain services.
type Handler struct {
	products     product.Repository
	orders       order.Repository
	orderService *order.Service
	reviews      *review.Service
	users        user.Repository
	tokens       *auth.TokenIssuer
}

// New constructs a Handler with the required domain dependencies.
func New(
	products product.Repository,
	orders order.Repository,
	orderService *order.Service,
	reviews *review.Service,
	users user.Repository,
	tokens *auth.TokenIssuer,
) *Handler {
	return &Handler{
		products:     products,
		orders:       orders,
		orderService: orderService,
		reviews:      reviews,
		users:        users,
		tokens:       tokens,
	}
}

// Routes builds the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)

	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Get("/products/{id}/reviews", h.listReviews)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Post("/orders", h.placeOrder)
		r.Get("/orders/mine", h.listMyOrders)
		r.Post("/products/{id}/reviews", h.submitReview)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(user.RoleAdmin))

			r.Get("/orders", h.listAllOrders)
			r.Patch("/orders/{id}/status", h.updateOrderStatus)
			r.Post("/products", h.createProduct)
			r.Put("/products/{id}", h.updateProduct)
		})
	})

	return r
}

// errorResponse is the error envelope for all non-2xx responses.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respond(w, r, status, errorResponse{Code: status, Message: message})
}

// serverError logs the cause and responds with an opaque 500.
func serverError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	respondError(w, r, http.StatusInternalServerError, "internal server error")
}

// decode reads the JSON request body into v, limited to maxBodyBytes.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
