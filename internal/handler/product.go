package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

const maxImageURLs = 5

type productRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	ImageURLs   []string `json:"imageUrls"`
}

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	ImageURLs   []string  `json:"imageUrls"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toProductResponse(p *product.Product) productResponse {
	urls := p.ImageURLs
	if urls == nil {
		urls = []string{}
	}
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Stock:       p.Stock,
		ImageURLs:   urls,
		CreatedAt:   p.CreatedAt,
	}
}

// listProducts handles GET /products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i := range products {
		resp[i] = toProductResponse(&products[i])
	}
	respond(w, r, http.StatusOK, resp)
}

// getProduct handles GET /products/{id}.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		serverError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, toProductResponse(p))
}

// createProduct handles POST /products (admin).
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	if msg, ok := validateProduct(&req); !ok {
		respondError(w, r, http.StatusBadRequest, msg)
		return
	}

	p := &product.Product{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Price:       decimal.NewFromFloat(req.Price).Round(2),
		Stock:       req.Stock,
		ImageURLs:   req.ImageURLs,
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		serverError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, toProductResponse(p))
}

// updateProduct handles PUT /products/{id} (admin). The write is a full-row
// absolute update; it never applies a relative stock change.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	if msg, ok := validateProduct(&req); !ok {
		respondError(w, r, http.StatusBadRequest, msg)
		return
	}

	p := &product.Product{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		Price:       decimal.NewFromFloat(req.Price).Round(2),
		Stock:       req.Stock,
		ImageURLs:   req.ImageURLs,
	}
	if err := h.products.Update(r.Context(), p); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		serverError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, toProductResponse(p))
}

func validateProduct(req *productRequest) (string, bool) {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return "name required", false
	case strings.TrimSpace(req.Description) == "":
		return "description required", false
	case req.Price <= 0:
		return "price must be greater than 0", false
	case req.Stock < 0:
		return "stock must not be negative", false
	case len(req.ImageURLs) > maxImageURLs:
		return "at most 5 image urls allowed", false
	}
	return "", true
}
