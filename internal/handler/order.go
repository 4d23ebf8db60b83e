package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type placeOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	ShippingAddress string             `json:"shippingAddress"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderLineResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	Lines           []orderLineResponse `json:"lines"`
	Total           float64             `json:"total"`
	ShippingAddress string              `json:"shippingAddress"`
	Status          string              `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
}

type userSummaryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type adminOrderResponse struct {
	orderResponse
	User userSummaryResponse `json:"user"`
}

func toOrderResponse(o *order.Order) orderResponse {
	lines := make([]orderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.InexactFloat64(),
		}
	}
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Lines:           lines,
		Total:           o.Total.InexactFloat64(),
		ShippingAddress: o.ShippingAddress,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
	}
}

// placeOrder handles POST /orders.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req placeOrderRequest
	if !decode(w, r, &req) {
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	o, err := h.orderService.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:          identity.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		mapOrderError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, toOrderResponse(o))
}

// listMyOrders handles GET /orders/mine.
func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		serverError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	respond(w, r, http.StatusOK, resp)
}

// listAllOrders handles GET /orders (admin).
func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}

	resp := make([]adminOrderResponse, len(orders))
	for i := range orders {
		resp[i] = adminOrderResponse{
			orderResponse: toOrderResponse(&orders[i].Order),
			User: userSummaryResponse{
				ID:    orders[i].User.ID,
				Name:  orders[i].User.Name,
				Email: orders[i].User.Email,
			},
		}
	}
	respond(w, r, http.StatusOK, resp)
}

// updateOrderStatus handles PATCH /orders/{id}/status (admin).
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orderService.Advance(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		mapOrderError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, toOrderResponse(o))
}

// mapOrderError converts domain errors to the error envelope.
func mapOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrBlankAddress):
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, order.ErrNotFound):
		respondError(w, r, http.StatusNotFound, err.Error())
		return
	}

	var (
		iqErr *order.InvalidQuantityError
		isErr *order.InsufficientStockError
		itErr *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &iqErr):
		respondError(w, r, http.StatusBadRequest, iqErr.Error())
	case errors.As(err, &isErr):
		respondError(w, r, http.StatusBadRequest, isErr.Error())
	case errors.As(err, &itErr):
		respondError(w, r, http.StatusBadRequest, itErr.Error())
	default:
		serverError(w, r, err)
	}
}
