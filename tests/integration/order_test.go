//go:build integration

package integration

import (
	"math"
	"net/http"
	"testing"
)

func TestPlaceOrder(t *testing.T) {
	token := registerCustomer(t, "Order Customer", "order-customer@example.com")
	before := getProduct(t, notebookID)

	resp := doJSON(t, http.MethodPost, "/api/orders", token, orderRequest{
		Items: []orderItemRequest{
			{ProductID: notebookID, Quantity: 2},
			{ProductID: skilletID, Quantity: 1},
		},
		ShippingAddress: "12 Harbor Lane, Rotterdam",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if !uuidPattern.MatchString(o.ID) {
		t.Errorf("order ID is not a UUID: %q", o.ID)
	}
	if o.Status != "Pending" {
		t.Errorf("status: got %q, want Pending", o.Status)
	}
	// 2 x 12.00 + 1 x 54.90
	if math.Abs(o.Total-78.90) > 1e-9 {
		t.Errorf("total: got %v, want 78.90", o.Total)
	}
	if len(o.Lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(o.Lines))
	}
	if o.Lines[0].Name != "Recycled Paper Notebook" {
		t.Errorf("line name snapshot: got %q", o.Lines[0].Name)
	}

	after := getProduct(t, notebookID)
	if after.Stock != before.Stock-2 {
		t.Errorf("stock: got %d, want %d", after.Stock, before.Stock-2)
	}
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	token := registerCustomer(t, "Empty Cart", "empty-cart@example.com")

	resp := doJSON(t, http.MethodPost, "/api/orders", token, orderRequest{
		Items:           []orderItemRequest{},
		ShippingAddress: "1 Main St",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_BlankAddress(t *testing.T) {
	token := registerCustomer(t, "No Address", "no-address@example.com")

	resp := doJSON(t, http.MethodPost, "/api/orders", token, orderRequest{
		Items:           []orderItemRequest{{ProductID: notebookID, Quantity: 1}},
		ShippingAddress: "   ",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_InsufficientStockRollsBack(t *testing.T) {
	token := registerCustomer(t, "Greedy Customer", "greedy-customer@example.com")
	notebookBefore := getProduct(t, notebookID)
	lampBefore := getProduct(t, brassLampID)

	resp := doJSON(t, http.MethodPost, "/api/orders", token, orderRequest{
		Items: []orderItemRequest{
			{ProductID: notebookID, Quantity: 1},
			{ProductID: brassLampID, Quantity: lampBefore.Stock + 1},
		},
		ShippingAddress: "1 Main St",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	// The reservation applied to the notebook before the lamp line failed
	// must be released.
	if got := getProduct(t, notebookID).Stock; got != notebookBefore.Stock {
		t.Errorf("notebook stock: got %d, want %d", got, notebookBefore.Stock)
	}
	if got := getProduct(t, brassLampID).Stock; got != lampBefore.Stock {
		t.Errorf("lamp stock: got %d, want %d", got, lampBefore.Stock)
	}
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	token := registerCustomer(t, "Ghost Shopper", "ghost-shopper@example.com")

	resp := doJSON(t, http.MethodPost, "/api/orders", token, orderRequest{
		Items:           []orderItemRequest{{ProductID: "00000000-0000-0000-0000-000000000000", Quantity: 1}},
		ShippingAddress: "1 Main St",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListMyOrders(t *testing.T) {
	token := registerCustomer(t, "History Customer", "history-customer@example.com")

	resp := doJSON(t, http.MethodPost, "/api/orders", token, orderRequest{
		Items:           []orderItemRequest{{ProductID: notebookID, Quantity: 1}},
		ShippingAddress: "1 Main St",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d", resp.StatusCode)
	}
	placed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, "/api/orders/mine", token, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	orders := decodeJSON[[]orderResponse](t, resp)
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	if orders[0].ID != placed.ID {
		t.Errorf("order ID: got %q, want %q", orders[0].ID, placed.ID)
	}
}

func TestOrderStatusLifecycle(t *testing.T) {
	customer := registerCustomer(t, "Lifecycle Customer", "lifecycle-customer@example.com")
	admin := loginAdmin(t)

	resp := doJSON(t, http.MethodPost, "/api/orders", customer, orderRequest{
		Items:           []orderItemRequest{{ProductID: notebookID, Quantity: 1}},
		ShippingAddress: "1 Main St",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d", resp.StatusCode)
	}
	orderID := decodeJSON[orderResponse](t, resp).ID
	resp.Body.Close()

	statusPath := "/api/orders/" + orderID + "/status"

	// Pending -> Delivered skips a step.
	resp = doJSON(t, http.MethodPatch, statusPath, admin, map[string]string{"status": "Delivered"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("skip: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPatch, statusPath, admin, map[string]string{"status": "Shipped"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ship: expected 200, got %d", resp.StatusCode)
	}
	if got := decodeJSON[orderResponse](t, resp).Status; got != "Shipped" {
		t.Errorf("status: got %q, want Shipped", got)
	}
	resp.Body.Close()

	// Repeating the current status is rejected.
	resp = doJSON(t, http.MethodPatch, statusPath, admin, map[string]string{"status": "Shipped"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("repeat: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPatch, statusPath, admin, map[string]string{"status": "Delivered"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deliver: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Delivered is terminal.
	resp = doJSON(t, http.MethodPatch, statusPath, admin, map[string]string{"status": "Shipped"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("regress: expected 400, got %d", resp.StatusCode)
	}
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	admin := loginAdmin(t)

	resp := doJSON(t, http.MethodPatch, "/api/orders/00000000-0000-0000-0000-000000000000/status", admin,
		map[string]string{"status": "Shipped"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminListOrders(t *testing.T) {
	customer := registerCustomer(t, "Visible Customer", "visible-customer@example.com")
	admin := loginAdmin(t)

	resp := doJSON(t, http.MethodPost, "/api/orders", customer, orderRequest{
		Items:           []orderItemRequest{{ProductID: notebookID, Quantity: 1}},
		ShippingAddress: "1 Main St",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d", resp.StatusCode)
	}
	placed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, "/api/orders", admin, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	orders := decodeJSON[[]adminOrderResponse](t, resp)
	found := false
	for _, o := range orders {
		if o.ID == placed.ID {
			found = true
			if o.User.Email != "visible-customer@example.com" {
				t.Errorf("owner email: got %q", o.User.Email)
			}
		}
	}
	if !found {
		t.Errorf("order %s not present in admin listing", placed.ID)
	}
}

func TestListMyOrders_NewestFirst(t *testing.T) {
	token := registerCustomer(t, "Repeat Customer", "repeat-customer@example.com")

	placeOne := func(qty int) string {
		resp := doJSON(t, http.MethodPost, "/api/orders", token, orderRequest{
			Items:           []orderItemRequest{{ProductID: notebookID, Quantity: qty}},
			ShippingAddress: "1 Main St",
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("place order: expected 201, got %d", resp.StatusCode)
		}
		return decodeJSON[orderResponse](t, resp).ID
	}
	first := placeOne(1)
	second := placeOne(2)

	resp := doJSON(t, http.MethodGet, "/api/orders/mine", token, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	orders := decodeJSON[[]orderResponse](t, resp)
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
	if orders[0].ID != second || orders[1].ID != first {
		t.Errorf("listing is not newest-first: got [%s, %s], want [%s, %s]",
			orders[0].ID, orders[1].ID, second, first)
	}

	// The admin listing follows the same order.
	admin := loginAdmin(t)
	resp = doJSON(t, http.MethodGet, "/api/orders", admin, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: expected 200, got %d", resp.StatusCode)
	}

	all := decodeJSON[[]adminOrderResponse](t, resp)
	firstIdx, secondIdx := -1, -1
	for i, o := range all {
		switch o.ID {
		case first:
			firstIdx = i
		case second:
			secondIdx = i
		}
	}
	if firstIdx < 0 || secondIdx < 0 {
		t.Fatalf("orders missing from admin listing: first at %d, second at %d", firstIdx, secondIdx)
	}
	if secondIdx > firstIdx {
		t.Errorf("admin listing is not newest-first: second order at %d, first at %d", secondIdx, firstIdx)
	}
}
