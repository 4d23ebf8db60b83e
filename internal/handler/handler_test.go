package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/review"
	"github.com/xenking/storefront/internal/domain/user"
)

// --- In-memory stores ---

type memProducts struct {
	mu   sync.Mutex
	byID map[string]*product.Product
}

func (m *memProducts) List(_ context.Context) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) Create(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.CreatedAt = time.Now()
	m.byID[p.ID] = &cp
	return nil
}

func (m *memProducts) Update(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return product.ErrNotFound
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memProducts) TryReserve(_ context.Context, productID string, quantity int) (*product.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[productID]
	if !ok || quantity < 1 || p.Stock < quantity {
		return nil, &order.InsufficientStockError{ProductID: productID}
	}
	p.Stock -= quantity
	return &product.Reservation{
		ProductID: productID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  quantity,
	}, nil
}

func (m *memProducts) Release(_ context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[productID].Stock += quantity
	return nil
}

type memOrders struct {
	mu    sync.Mutex
	byID  map[string]*order.Order
	users map[string]order.UserSummary
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.byID[o.ID] = &cp
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) ListAll(_ context.Context) ([]order.AdminOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.AdminOrder
	for _, o := range m.byID {
		out = append(out, order.AdminOrder{Order: *o, User: m.users[o.UserID]})
	}
	return out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, expected, next order.Status) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != expected {
		return nil, order.ErrStatusConflict
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	cp := *o
	return &cp, nil
}

type memReviews struct {
	mu     sync.Mutex
	byPair map[string]*review.Review
}

func (m *memReviews) Upsert(_ context.Context, r *review.Review) (*review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.ProductID + "/" + r.UserID
	if existing, ok := m.byPair[key]; ok {
		existing.Rating = r.Rating
		existing.Comment = r.Comment
		existing.UpdatedAt = time.Now()
		cp := *existing
		return &cp, nil
	}
	cp := *r
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.byPair[key] = &cp
	out := cp
	return &out, nil
}

func (m *memReviews) ListByProduct(_ context.Context, productID string) ([]review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []review.Review
	for _, r := range m.byPair {
		if r.ProductID == productID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*user.User
}

func (m *memUsers) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	cp := *u
	cp.CreatedAt = time.Now()
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// --- Harness ---

type env struct {
	api      http.Handler
	products *memProducts
	orders   *memOrders
	users    *memUsers
	tokens   *auth.TokenIssuer
}

func newEnv(t *testing.T) *env {
	t.Helper()

	products := &memProducts{byID: make(map[string]*product.Product)}
	orders := &memOrders{byID: make(map[string]*order.Order), users: make(map[string]order.UserSummary)}
	reviews := &memReviews{byPair: make(map[string]*review.Review)}
	users := &memUsers{byID: make(map[string]*user.User)}
	tokens := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)

	h := New(
		products,
		orders,
		order.NewService(products, orders),
		review.NewService(reviews, products),
		users,
		tokens,
	)

	return &env{
		api:      h.Routes(),
		products: products,
		orders:   orders,
		users:    users,
		tokens:   tokens,
	}
}

func (e *env) addProduct(t *testing.T, id, name, price string, stock int) {
	t.Helper()
	require.NoError(t, e.products.Create(context.Background(), &product.Product{
		ID:          id,
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
	}))
}

func (e *env) addUser(t *testing.T, id, name, email string, role user.Role) string {
	t.Helper()
	hash, err := user.HashPassword("password123")
	require.NoError(t, err)
	u := &user.User{ID: id, Name: name, Email: email, PasswordHash: hash, Role: role}
	require.NoError(t, e.users.Create(context.Background(), u))
	e.orders.users[id] = order.UserSummary{ID: id, Name: name, Email: email}

	token, err := e.tokens.Issue(u)
	require.NoError(t, err)
	return token
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.api.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

// --- Auth routes ---

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name":     "Ada",
		"email":    "Ada@Example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeBody[authResponse](t, rec)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "ada@example.com", created.User.Email, "email is normalized")
	assert.Equal(t, string(user.RoleCustomer), created.User.Role, "self-registration never grants admin")

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody[authResponse](t, rec).Token)
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t)

	cases := []map[string]string{
		{"name": "", "email": "a@b.com", "password": "password123"},
		{"name": "Ada", "email": "not-an-email", "password": "password123"},
		{"name": "Ada", "email": "a@b.com", "password": "short"},
	}
	for _, body := range cases {
		rec := e.do(t, http.MethodPost, "/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %v", body)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "u1", "Ada", "ada@example.com", user.RoleCustomer)

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name":     "Other Ada",
		"email":    "ada@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "u1", "Ada", "ada@example.com", user.RoleCustomer)

	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- Catalog routes ---

func TestListAndGetProducts(t *testing.T) {
	e := newEnv(t)
	e.addProduct(t, "p1", "Widget", "10.00", 5)

	rec := e.do(t, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]productResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Widget", list[0].Name)
	assert.Equal(t, 10.0, list[0].Price)

	rec = e.do(t, http.MethodGet, "/products/p1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decodeBody[productResponse](t, rec).Stock)

	rec = e.do(t, http.MethodGet, "/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCatalogManagement(t *testing.T) {
	e := newEnv(t)
	admin := e.addUser(t, "a1", "Root", "root@example.com", user.RoleAdmin)

	rec := e.do(t, http.MethodPost, "/products", admin, map[string]any{
		"name":        "Widget",
		"description": "A fine widget",
		"price":       19.99,
		"stock":       10,
		"imageUrls":   []string{"https://img.example.com/w.png"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[productResponse](t, rec)
	assert.NotEmpty(t, created.ID)

	rec = e.do(t, http.MethodPut, "/products/"+created.ID, admin, map[string]any{
		"name":        "Widget v2",
		"description": "A finer widget",
		"price":       24.99,
		"stock":       3,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[productResponse](t, rec)
	assert.Equal(t, "Widget v2", updated.Name)
	assert.Equal(t, 3, updated.Stock, "stock is an absolute write")

	rec = e.do(t, http.MethodPut, "/products/missing", admin, map[string]any{
		"name":        "X",
		"description": "Y",
		"price":       1.0,
		"stock":       1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProduct_Validation(t *testing.T) {
	e := newEnv(t)
	admin := e.addUser(t, "a1", "Root", "root@example.com", user.RoleAdmin)

	cases := []map[string]any{
		{"name": "", "description": "d", "price": 1.0, "stock": 1},
		{"name": "n", "description": "", "price": 1.0, "stock": 1},
		{"name": "n", "description": "d", "price": 0.0, "stock": 1},
		{"name": "n", "description": "d", "price": -1.0, "stock": 1},
		{"name": "n", "description": "d", "price": 1.0, "stock": -1},
		{"name": "n", "description": "d", "price": 1.0, "stock": 1,
			"imageUrls": []string{"1", "2", "3", "4", "5", "6"}},
	}
	for i, body := range cases {
		rec := e.do(t, http.MethodPost, "/products", admin, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "case %d", i)
	}
}

// --- Access control ---

func TestRouteAccessControl(t *testing.T) {
	e := newEnv(t)
	customer := e.addUser(t, "c1", "Ada", "ada@example.com", user.RoleCustomer)

	// No token at all.
	rec := e.do(t, http.MethodPost, "/orders", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token.
	rec = e.do(t, http.MethodPost, "/orders", "garbage", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Customer on admin-only routes.
	for _, probe := range []struct{ method, path string }{
		{http.MethodGet, "/orders"},
		{http.MethodPatch, "/orders/o1/status"},
		{http.MethodPost, "/products"},
		{http.MethodPut, "/products/p1"},
	} {
		rec = e.do(t, probe.method, probe.path, customer, map[string]any{})
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", probe.method, probe.path)
	}
}

// --- Orders ---

func TestPlaceOrderFlow(t *testing.T) {
	e := newEnv(t)
	customer := e.addUser(t, "c1", "Ada", "ada@example.com", user.RoleCustomer)
	e.addProduct(t, "p1", "Widget", "10.00", 10)
	e.addProduct(t, "p2", "Gadget", "2.50", 10)

	rec := e.do(t, http.MethodPost, "/orders", customer, map[string]any{
		"items": []map[string]any{
			{"productId": "p1", "quantity": 2},
			{"productId": "p2", "quantity": 4},
		},
		"shippingAddress": "1 Main St",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	o := decodeBody[orderResponse](t, rec)
	assert.Equal(t, "c1", o.UserID)
	assert.Equal(t, "Pending", o.Status)
	assert.Equal(t, 30.0, o.Total)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, 10.0, o.Lines[0].UnitPrice)

	p, err := e.products.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)

	rec = e.do(t, http.MethodGet, "/orders/mine", customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeBody[[]orderResponse](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, o.ID, mine[0].ID)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	e := newEnv(t)
	customer := e.addUser(t, "c1", "Ada", "ada@example.com", user.RoleCustomer)
	e.addProduct(t, "p1", "Widget", "10.00", 10)
	e.addProduct(t, "p2", "Gadget", "2.50", 1)

	rec := e.do(t, http.MethodPost, "/orders", customer, map[string]any{
		"items": []map[string]any{
			{"productId": "p1", "quantity": 2},
			{"productId": "p2", "quantity": 5},
		},
		"shippingAddress": "1 Main St",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeBody[errorResponse](t, rec)
	assert.Contains(t, envelope.Message, "p2")

	// The partial reservation on p1 was rolled back.
	p, err := e.products.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
}

func TestPlaceOrder_Validation(t *testing.T) {
	e := newEnv(t)
	customer := e.addUser(t, "c1", "Ada", "ada@example.com", user.RoleCustomer)
	e.addProduct(t, "p1", "Widget", "10.00", 10)

	rec := e.do(t, http.MethodPost, "/orders", customer, map[string]any{
		"items":           []map[string]any{},
		"shippingAddress": "1 Main St",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/orders", customer, map[string]any{
		"items":           []map[string]any{{"productId": "p1", "quantity": 1}},
		"shippingAddress": "  ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/orders", customer, map[string]any{
		"items":           []map[string]any{{"productId": "p1", "quantity": 0}},
		"shippingAddress": "1 Main St",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMyOrders_ScopedToCaller(t *testing.T) {
	e := newEnv(t)
	ada := e.addUser(t, "c1", "Ada", "ada@example.com", user.RoleCustomer)
	bob := e.addUser(t, "c2", "Bob", "bob@example.com", user.RoleCustomer)
	e.addProduct(t, "p1", "Widget", "10.00", 10)

	rec := e.do(t, http.MethodPost, "/orders", ada, map[string]any{
		"items":           []map[string]any{{"productId": "p1", "quantity": 1}},
		"shippingAddress": "1 Main St",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/orders/mine", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]orderResponse](t, rec))
}

func TestOrderStatusLifecycle(t *testing.T) {
	e := newEnv(t)
	customer := e.addUser(t, "c1", "Ada", "ada@example.com", user.RoleCustomer)
	admin := e.addUser(t, "a1", "Root", "root@example.com", user.RoleAdmin)
	e.addProduct(t, "p1", "Widget", "10.00", 10)

	rec := e.do(t, http.MethodPost, "/orders", customer, map[string]any{
		"items":           []map[string]any{{"productId": "p1", "quantity": 1}},
		"shippingAddress": "1 Main St",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decodeBody[orderResponse](t, rec).ID

	statusPath := fmt.Sprintf("/orders/%s/status", orderID)

	// Skipping a step is rejected.
	rec = e.do(t, http.MethodPatch, statusPath, admin, map[string]string{"status": "Delivered"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPatch, statusPath, admin, map[string]string{"status": "Shipped"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Shipped", decodeBody[orderResponse](t, rec).Status)

	rec = e.do(t, http.MethodPatch, statusPath, admin, map[string]string{"status": "Delivered"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Delivered", decodeBody[orderResponse](t, rec).Status)

	// Delivered is terminal.
	rec = e.do(t, http.MethodPatch, statusPath, admin, map[string]string{"status": "Shipped"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPatch, "/orders/missing/status", admin, map[string]string{"status": "Shipped"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminListOrders(t *testing.T) {
	e := newEnv(t)
	customer := e.addUser(t, "c1", "Ada", "ada@example.com", user.RoleCustomer)
	admin := e.addUser(t, "a1", "Root", "root@example.com", user.RoleAdmin)
	e.addProduct(t, "p1", "Widget", "10.00", 10)

	rec := e.do(t, http.MethodPost, "/orders", customer, map[string]any{
		"items":           []map[string]any{{"productId": "p1", "quantity": 1}},
		"shippingAddress": "1 Main St",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/orders", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[[]adminOrderResponse](t, rec)
	require.Len(t, all, 1)
	assert.Equal(t, "Ada", all[0].User.Name)
	assert.Equal(t, "ada@example.com", all[0].User.Email)
}

// --- Reviews ---

func TestReviewFlow(t *testing.T) {
	e := newEnv(t)
	customer := e.addUser(t, "c1", "Ada", "ada@example.com", user.RoleCustomer)
	e.addProduct(t, "p1", "Widget", "10.00", 10)

	rec := e.do(t, http.MethodPost, "/products/p1/reviews", customer, map[string]any{
		"rating":  4,
		"comment": "solid",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[reviewResponse](t, rec)
	assert.Equal(t, 4, first.Rating)

	// Resubmission overwrites in place.
	rec = e.do(t, http.MethodPost, "/products/p1/reviews", customer, map[string]any{
		"rating":  5,
		"comment": "even better",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[reviewResponse](t, rec)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Rating)

	rec = e.do(t, http.MethodGet, "/products/p1/reviews", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]reviewResponse](t, rec), 1)
}

func TestSubmitReview_Errors(t *testing.T) {
	e := newEnv(t)
	customer := e.addUser(t, "c1", "Ada", "ada@example.com", user.RoleCustomer)
	e.addProduct(t, "p1", "Widget", "10.00", 10)

	rec := e.do(t, http.MethodPost, "/products/p1/reviews", customer, map[string]any{
		"rating": 6,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/products/missing/reviews", customer, map[string]any{
		"rating": 3,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/products/p1/reviews", "", map[string]any{
		"rating": 3,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
