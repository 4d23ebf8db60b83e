package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

// ItemRequest is one requested cart line.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID          string
	Items           []ItemRequest
	ShippingAddress string
}

// Service coordinates order placement against the inventory and drives the
// status state machine. It is the only writer of order rows.
type Service struct {
	inventory product.Inventory
	orders    Repository

	tracer    trace.Tracer
	placed    metric.Int64Counter
	rollbacks metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
// Telemetry uses the global otel providers; without a configured SDK the
// instruments are no-ops.
func NewService(inventory product.Inventory, orders Repository) *Service {
	meter := otel.Meter("storefront.order")
	placed, _ := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders committed to the ledger"))
	rollbacks, _ := meter.Int64Counter("orders.rollbacks",
		metric.WithDescription("Placements rolled back after a partial reservation"))

	return &Service{
		inventory: inventory,
		orders:    orders,
		tracer:    otel.Tracer("storefront.order"),
		placed:    placed,
		rollbacks: rollbacks,
	}
}

// PlaceOrder reserves stock for every line item and commits a single order,
// or leaves inventory unchanged. Reservations are applied one line at a time
// in input order; on any failure — a line that cannot be reserved or a
// ledger write error — every reservation already applied in this attempt is
// released before the error is returned. No partial order and no net stock
// change is observable after a failed placement.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, err error) {
	ctx, span := s.tracer.Start(ctx, "order.place",
		trace.WithAttributes(attribute.Int("order.items", len(req.Items))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "order placement failed")
		}
		span.End()
	}()

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, ErrBlankAddress
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
	}

	applied := make([]*product.Reservation, 0, len(req.Items))
	for _, item := range req.Items {
		res, err := s.inventory.TryReserve(ctx, item.ProductID, item.Quantity)
		if err != nil {
			s.releaseAll(ctx, applied)
			return nil, err
		}
		applied = append(applied, res)
	}

	lines := make([]Line, len(applied))
	total := decimal.Zero
	for i, res := range applied {
		lines[i] = Line{
			ProductID: res.ProductID,
			Name:      res.Name,
			Quantity:  res.Quantity,
			UnitPrice: res.UnitPrice,
		}
		total = total.Add(res.UnitPrice.Mul(decimal.NewFromInt(int64(res.Quantity))))
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Lines:           lines,
		Total:           total.Round(2),
		ShippingAddress: req.ShippingAddress,
		Status:          StatusPending,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		// A ledger write failure after successful reservation rolls back
		// exactly like a mid-loop reservation failure.
		s.releaseAll(ctx, applied)
		return nil, errors.Wrap(err, "create order")
	}

	s.placed.Add(ctx, 1)
	return o, nil
}

// releaseAll returns every applied reservation to stock, most recent first.
// It runs detached from the caller's cancellation: a cancelled request must
// not strand reservations. Release failures are logged and do not mask the
// error that triggered the rollback.
func (s *Service) releaseAll(ctx context.Context, applied []*product.Reservation) {
	if len(applied) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.rollbacks.Add(ctx, 1)
	lg := zctx.From(ctx)

	for i := len(applied) - 1; i >= 0; i-- {
		res := applied[i]
		if err := s.inventory.Release(ctx, res.ProductID, res.Quantity); err != nil {
			lg.Error("release reservation",
				zap.String("product_id", res.ProductID),
				zap.Int("quantity", res.Quantity),
				zap.Error(err),
			)
		}
	}
}

// Advance moves an order to the requested status. The request succeeds only
// when requested is exactly the successor of the order's current status;
// anything else — the current value, an earlier value, or an unknown label —
// fails with InvalidTransitionError. The persisted update is conditional on
// the status read here, so concurrent advances serialize on the order row.
func (s *Service) Advance(ctx context.Context, orderID, requested string) (_ *Order, err error) {
	ctx, span := s.tracer.Start(ctx, "order.advance",
		trace.WithAttributes(attribute.String("order.requested_status", requested)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "status advance failed")
		}
		span.End()
	}()

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	req, ok := ParseStatus(requested)
	if !ok {
		return nil, &InvalidTransitionError{From: o.Status, Requested: requested}
	}
	next, ok := o.Status.Next()
	if !ok || req != next {
		return nil, &InvalidTransitionError{From: o.Status, Requested: requested}
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, o.Status, next)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, &InvalidTransitionError{From: o.Status, Requested: requested}
		}
		return nil, errors.Wrap(err, "update status")
	}
	return updated, nil
}
