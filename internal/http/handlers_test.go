package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"marketplace/internal/domain"
	"marketplace/internal/export"
	"marketplace/internal/repository"
	"marketplace/internal/service"
)

const (
	testSecret = "test-secret"
	testAPIKey = "test-admin-key"
)

type response struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Data       json.RawMessage    `json:"data"`
	Pagination *domain.Pagination `json:"pagination"`
}

func init() { gin.SetMode(gin.TestMode) }

func setupServer(t *testing.T) *Server {
	t.Helper()
	store := repository.NewMemoryStore()
	carts := repository.NewMemoryCarts(store)
	addresses := repository.NewMemoryAddresses(store)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orders := service.NewOrderService(service.Repositories{
		Products:  store,
		Carts:     carts,
		Addresses: addresses,
		Orders:    repository.NewMemoryOrders(store),
	}, repository.NewMemoryTx(store), service.WithLogger(log))
	return NewServer(Services{
		Products:  service.NewProductService(store),
		Carts:     service.NewCartService(carts, store),
		Addresses: service.NewAddressService(addresses),
		Orders:    orders,
	}, Options{JWTSecret: testSecret, AdminAPIKey: testAPIKey, Logger: log})
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, userID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

type auth func(*http.Request)

func asUser(t *testing.T, userID string) auth {
	tok := token(t, userID)
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func asAdmin(r *http.Request) { r.Header.Set(apiKeyHeader, testAPIKey) }

func anonymous(*http.Request) {}

func do(t *testing.T, s *Server, a auth, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	a(req)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) response {
	t.Helper()
	var r response
	if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	if data != nil && len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return r
}

func createProduct(t *testing.T, s *Server, body map[string]any) domain.Product {
	t.Helper()
	w := do(t, s, asAdmin, http.MethodPost, "/api/products", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create product code %v: %s", w.Code, w.Body.String())
	}
	var p domain.Product
	decode(t, w, &p)
	return p
}

func createAddress(t *testing.T, s *Server, a auth) domain.Address {
	t.Helper()
	w := do(t, s, a, http.MethodPost, "/api/addresses", map[string]any{
		"address_line": "12 Market St", "city": "Pune", "pincode": "411001", "mobile": "+91 99887 76655",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create address code %v: %s", w.Code, w.Body.String())
	}
	var addr domain.Address
	decode(t, w, &addr)
	return addr
}

func addToCart(t *testing.T, s *Server, a auth, productID string, qty int) {
	t.Helper()
	w := do(t, s, a, http.MethodPost, "/api/cart", map[string]any{"product_id": productID, "quantity": qty})
	if w.Code != http.StatusCreated {
		t.Fatalf("add to cart code %v: %s", w.Code, w.Body.String())
	}
}

func TestOrderFlow(t *testing.T) {
	s := setupServer(t)
	user := asUser(t, "u1")
	lamp := createProduct(t, s, map[string]any{
		"name": "Lamp", "price": 20, "stock": 10,
		"wholesale_enabled": true, "wholesale_price": 15, "moq": 3,
	})
	mug := createProduct(t, s, map[string]any{"name": "Mug", "price": 4, "stock": 10})
	addr := createAddress(t, s, user)
	addToCart(t, s, user, lamp.ID, 3)
	addToCart(t, s, user, mug.ID, 1)

	// create
	w := do(t, s, user, http.MethodPost, "/api/orders", map[string]any{"delivery_address": addr.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("create order code %v: %s", w.Code, w.Body.String())
	}
	var order domain.OrderView
	r := decode(t, w, &order)
	if !r.Success || r.Message != "Order created successfully" {
		t.Fatalf("unexpected envelope %+v", r)
	}
	if order.Subtotal != 49 || order.Shipping != 5 || order.Total != 54 || order.TotalSavings != 15 {
		t.Fatalf("totals %v/%v/%v/%v", order.Subtotal, order.Shipping, order.Total, order.TotalSavings)
	}
	if order.DeliveryAddress == nil || order.DeliveryAddress.ID != addr.ID {
		t.Fatalf("address not resolved: %+v", order.DeliveryAddress)
	}

	// cart is empty afterwards
	var lines []domain.CartLine
	decode(t, do(t, s, user, http.MethodGet, "/api/cart", nil), &lines)
	if len(lines) != 0 {
		t.Fatalf("cart not cleared: %d lines", len(lines))
	}

	// list and get
	var mine []domain.OrderView
	decode(t, do(t, s, user, http.MethodGet, "/api/orders", nil), &mine)
	if len(mine) != 1 {
		t.Fatalf("orders %d", len(mine))
	}
	w = do(t, s, user, http.MethodGet, "/api/orders/"+order.OrderID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get order code %v", w.Code)
	}
	w = do(t, s, asUser(t, "u2"), http.MethodGet, "/api/orders/"+order.OrderID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign order code %v", w.Code)
	}

	// status update by order number
	w = do(t, s, asAdmin, http.MethodPatch, "/api/orders/"+order.OrderID, map[string]any{"order_status": "shipped"})
	if w.Code != http.StatusOK {
		t.Fatalf("status code %v: %s", w.Code, w.Body.String())
	}
	var updated domain.OrderView
	decode(t, w, &updated)
	if updated.OrderStatus != domain.OrderStatusShipped {
		t.Fatalf("status %v", updated.OrderStatus)
	}
}

func TestCreateOrder_Errors(t *testing.T) {
	s := setupServer(t)
	user := asUser(t, "u1")
	addr := createAddress(t, s, user)

	w := do(t, s, user, http.MethodPost, "/api/orders", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing address code %v", w.Code)
	}
	if r := decode(t, w, nil); r.Message != "Delivery address is required" {
		t.Fatalf("missing address message %q", r.Message)
	}
	w = do(t, s, user, http.MethodPost, "/api/orders", map[string]any{"delivery_address": addr.ID, "notes": 42})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad notes code %v", w.Code)
	}
	if r := decode(t, w, nil); r.Message != "notes must be a string" {
		t.Fatalf("bad notes message %q", r.Message)
	}
	w = do(t, s, user, http.MethodPost, "/api/orders", map[string]any{"delivery_address": addr.ID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty cart code %v", w.Code)
	}
	if r := decode(t, w, nil); r.Success || r.Message != service.ErrEmptyCart.Error() {
		t.Fatalf("empty cart envelope %+v", r)
	}

	p := createProduct(t, s, map[string]any{"name": "Chair", "price": 30, "stock": 2})
	addToCart(t, s, user, p.ID, 5)
	w = do(t, s, user, http.MethodPost, "/api/orders", map[string]any{"delivery_address": addr.ID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("stock code %v", w.Code)
	}
	var details struct {
		Available int64 `json:"available"`
	}
	r := decode(t, w, &details)
	if r.Message != "Only 2 items available for Chair" || details.Available != 2 {
		t.Fatalf("stock envelope %+v %+v", r, details)
	}
}

func TestCreateOrder_LongNotes(t *testing.T) {
	s := setupServer(t)
	user := asUser(t, "u1")
	addr := createAddress(t, s, user)
	p := createProduct(t, s, map[string]any{"name": "Chair", "price": 30, "stock": 2})
	addToCart(t, s, user, p.ID, 1)

	notes := strings.Repeat("leave at the back door. ", 40)
	w := do(t, s, user, http.MethodPost, "/api/orders", map[string]any{"delivery_address": addr.ID, "notes": notes})
	if w.Code != http.StatusCreated {
		t.Fatalf("long notes code %v: %s", w.Code, w.Body.String())
	}
	var o domain.OrderView
	decode(t, w, &o)
	if o.Notes != notes {
		t.Fatalf("notes not kept: %d chars", len(o.Notes))
	}
}

func TestAuth(t *testing.T) {
	s := setupServer(t)

	if w := do(t, s, anonymous, http.MethodGet, "/api/orders", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token code %v", w.Code)
	}
	bad := func(r *http.Request) { r.Header.Set("Authorization", "Bearer not-a-token") }
	if w := do(t, s, bad, http.MethodGet, "/api/orders", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token code %v", w.Code)
	}

	forged, err := IssueToken("other-secret", "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	withForged := func(r *http.Request) { r.Header.Set("Authorization", forged) }
	if w := do(t, s, withForged, http.MethodGet, "/api/orders", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("forged token code %v", w.Code)
	}

	expired, err := IssueToken(testSecret, "u1", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	withExpired := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }
	if w := do(t, s, withExpired, http.MethodGet, "/api/orders", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expired token code %v", w.Code)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	withNone := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+unsigned) }
	if w := do(t, s, withNone, http.MethodGet, "/api/orders", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("alg none code %v", w.Code)
	}

	// user tokens do not open admin routes
	if w := do(t, s, asUser(t, "u1"), http.MethodGet, "/api/orders/admin", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("admin without key code %v", w.Code)
	}
	wrongKey := func(r *http.Request) { r.Header.Set(apiKeyHeader, "nope") }
	if w := do(t, s, wrongKey, http.MethodPost, "/api/products", map[string]any{"name": "x"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key code %v", w.Code)
	}
}

func TestAdminOrders(t *testing.T) {
	s := setupServer(t)
	user := asUser(t, "u1")
	addr := createAddress(t, s, user)
	p := createProduct(t, s, map[string]any{"name": "Desk Lamp", "price": 60, "stock": 100})

	var ids []string
	for i := 0; i < 3; i++ {
		addToCart(t, s, user, p.ID, 1)
		w := do(t, s, user, http.MethodPost, "/api/orders", map[string]any{"delivery_address": addr.ID})
		if w.Code != http.StatusCreated {
			t.Fatalf("create order %d code %v", i, w.Code)
		}
		var o domain.OrderView
		decode(t, w, &o)
		ids = append(ids, o.ID)
	}

	// list with pagination
	var page []domain.OrderView
	r := decode(t, do(t, s, asAdmin, http.MethodGet, "/api/orders/admin?page=2&limit=2", nil), &page)
	if r.Pagination == nil || r.Pagination.TotalOrders != 3 || r.Pagination.TotalPages != 2 || r.Pagination.CurrentPage != 2 {
		t.Fatalf("pagination %+v", r.Pagination)
	}
	if len(page) != 1 {
		t.Fatalf("page 2 size %d", len(page))
	}
	w := do(t, s, asAdmin, http.MethodGet, "/api/orders/admin?page=2305843009213693953&limit=4", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("far page code %v: %s", w.Code, w.Body.String())
	}
	page = nil
	r = decode(t, w, &page)
	if len(page) != 0 || r.Pagination == nil || r.Pagination.TotalOrders != 3 || r.Pagination.CurrentPage != 2305843009213693953 {
		t.Fatalf("far page %d %+v", len(page), r.Pagination)
	}
	if w := do(t, s, asAdmin, http.MethodGet, "/api/orders/admin?type=bulk", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad type code %v", w.Code)
	}

	// search by mobile fragment
	var found []domain.OrderView
	decode(t, do(t, s, asAdmin, http.MethodGet, "/api/orders/admin?search=76655", nil), &found)
	if len(found) != 3 {
		t.Fatalf("search found %d", len(found))
	}

	// status and payment by id
	w = do(t, s, asAdmin, http.MethodPatch, "/api/orders/admin/"+ids[0], map[string]any{"order_status": "delivered"})
	if w.Code != http.StatusOK {
		t.Fatalf("status code %v: %s", w.Code, w.Body.String())
	}
	w = do(t, s, asAdmin, http.MethodPatch, "/api/orders/admin/"+ids[0], map[string]any{"order_status": "lost"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status code %v", w.Code)
	}
	w = do(t, s, asAdmin, http.MethodPatch, "/api/orders/admin/"+ids[0]+"/payment", map[string]any{"payment_status": "paid"})
	if w.Code != http.StatusOK {
		t.Fatalf("payment code %v: %s", w.Code, w.Body.String())
	}
	w = do(t, s, asAdmin, http.MethodPatch, "/api/orders/admin/missing/payment", map[string]any{"payment_status": "paid"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("payment missing code %v", w.Code)
	}

	// stats
	var stats domain.OrderStats
	decode(t, do(t, s, asAdmin, http.MethodGet, "/api/orders/admin/stats", nil), &stats)
	if stats.TotalOrders != 3 || stats.DeliveredOrders != 1 || stats.PendingOrders != 2 || stats.TotalRevenue != 60 {
		t.Fatalf("stats %+v", stats)
	}

	var all []domain.OrderView
	w = do(t, s, asAdmin, http.MethodGet, "/api/orders/admin?status=all&type=all", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status all code %v: %s", w.Code, w.Body.String())
	}
	if decode(t, w, &all); len(all) != 3 {
		t.Fatalf("status all found %d", len(all))
	}

	// export
	w = do(t, s, asAdmin, http.MethodGet, "/api/orders/admin/export?status=pending", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export code %v", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != export.ContentType {
		t.Fatalf("export content type %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Fatal("empty export")
	}

	// delete
	if w := do(t, s, asAdmin, http.MethodDelete, "/api/orders/admin/"+ids[1], nil); w.Code != http.StatusOK {
		t.Fatalf("delete code %v", w.Code)
	}
	if w := do(t, s, asAdmin, http.MethodDelete, "/api/orders/admin/"+ids[1], nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete code %v", w.Code)
	}
}

func TestProductAndCartRoutes(t *testing.T) {
	s := setupServer(t)
	user := asUser(t, "u1")
	p := createProduct(t, s, map[string]any{"name": "Kettle", "price": 25, "stock": 4})

	if w := do(t, s, anonymous, http.MethodGet, "/api/products/"+p.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("get product code %v", w.Code)
	}
	w := do(t, s, asAdmin, http.MethodPut, "/api/products/"+p.ID, map[string]any{"name": "Kettle 2", "price": 27, "stock": 4})
	if w.Code != http.StatusOK {
		t.Fatalf("update code %v: %s", w.Code, w.Body.String())
	}
	var list []domain.Product
	decode(t, do(t, s, anonymous, http.MethodGet, "/api/products?name=kettle&min_price=26", nil), &list)
	if len(list) != 1 || list[0].Name != "Kettle 2" {
		t.Fatalf("list %+v", list)
	}
	if w := do(t, s, asAdmin, http.MethodPost, "/api/products", map[string]any{"name": "Bad", "price": -1}); w.Code != http.StatusBadRequest {
		t.Fatalf("negative price code %v", w.Code)
	}

	addToCart(t, s, user, p.ID, 1)
	addToCart(t, s, user, p.ID, 2)
	var lines []domain.CartLine
	decode(t, do(t, s, user, http.MethodGet, "/api/cart", nil), &lines)
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("cart %+v", lines)
	}
	if w := do(t, s, user, http.MethodPost, "/api/cart", map[string]any{"product_id": "nope", "quantity": 1}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown product code %v", w.Code)
	}
	if w := do(t, s, user, http.MethodDelete, "/api/cart/"+lines[0].ID, nil); w.Code != http.StatusOK {
		t.Fatalf("remove code %v", w.Code)
	}

	if w := do(t, s, asAdmin, http.MethodDelete, "/api/products/"+p.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("delete product code %v", w.Code)
	}
	if w := do(t, s, anonymous, http.MethodGet, "/api/products/"+p.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("deleted product code %v", w.Code)
	}
}

func TestCreateAddress_Validation(t *testing.T) {
	s := setupServer(t)
	user := asUser(t, "u1")
	w := do(t, s, user, http.MethodPost, "/api/addresses", map[string]any{"address_line": "x", "mobile": "call me"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad mobile code %v", w.Code)
	}
	createAddress(t, s, user)
	var list []domain.Address
	decode(t, do(t, s, user, http.MethodGet, "/api/addresses", nil), &list)
	if len(list) != 1 || list[0].UserID != "u1" {
		t.Fatalf("addresses %+v", list)
	}
}

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidInput, http.StatusBadRequest},
		{service.ErrEmptyCart, http.StatusBadRequest},
		{service.ErrInvalidStatus, http.StatusBadRequest},
		{&service.InsufficientStockError{ProductName: "A"}, http.StatusBadRequest},
		{&service.MissingProductError{ProductID: "p1"}, http.StatusBadRequest},
		{fmt.Errorf("order: %w", repository.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("insert: %w", repository.ErrConflict), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToStatus(tc.err); got != tc.want {
			t.Errorf("%v: got %d want %d", tc.err, got, tc.want)
		}
	}
}

func TestHealthz(t *testing.T) {
	s := setupServer(t)
	if w := do(t, s, anonymous, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz code %v", w.Code)
	}
}
