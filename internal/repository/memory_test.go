package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"marketplace/internal/domain"
)

func TestMemoryStore_ProductCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := domain.Product{Name: "A", Price: 10, Stock: 5}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("no id")
	}

	got, err := store.GetByID(ctx, p.ID)
	if err != nil || got.ID != p.ID {
		t.Fatalf("get: %v", err)
	}

	p.Price = 12
	if err := store.Update(ctx, &p); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_GetByIDsSkipsMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := domain.Product{Name: "A", Price: 1, Stock: 1}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatal(err)
	}
	list, err := store.GetByIDs(ctx, []string{p.ID, "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("unexpected products %+v", list)
	}
}

func TestMemoryStore_ReserveStock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := domain.Product{Name: "A", Price: 10, Stock: 3}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatal(err)
	}
	if err := store.ReserveStock(ctx, p.ID, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.ReserveStock(ctx, p.ID, 2); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	got, _ := store.GetByID(ctx, p.ID)
	if got.Stock != 1 {
		t.Fatalf("stock expected 1, got %v", got.Stock)
	}
}

func TestMemoryTx_TransactionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)
	orders := NewMemoryOrders(store)

	// seed product
	p := domain.Product{Name: "A", Price: 10, Stock: 5}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatal(err)
	}

	// reserve stock and create the order under one lock
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := store.ReserveStock(ctx, p.ID, 3); err != nil {
			return err
		}
		o := domain.Order{
			OrderID: "ORD-00000001",
			UserID:  "u1",
			Items:   []domain.OrderItem{{ProductID: p.ID, Quantity: 3, Price: 10, PricingTier: domain.TierRetail}},
		}
		return orders.Create(ctx, &o)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	// check stock after
	pp, _ := store.GetByID(context.Background(), p.ID)
	if pp.Stock != 2 {
		t.Fatalf("stock expected 2, got %v", pp.Stock)
	}
}

func TestMemoryOrders_DuplicateOrderID(t *testing.T) {
	ctx := context.Background()
	orders := NewMemoryOrders(NewMemoryStore())
	first := domain.Order{OrderID: "ORD-AAAA0000", UserID: "u1"}
	if err := orders.Create(ctx, &first); err != nil {
		t.Fatal(err)
	}
	dup := domain.Order{OrderID: "ORD-AAAA0000", UserID: "u2"}
	if err := orders.Create(ctx, &dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMemoryOrders_ListFilterAndPage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := NewMemoryOrders(store)

	seed := []domain.Order{
		{OrderID: "ORD-00000001", UserID: "u1", OrderStatus: domain.OrderStatusPending, DeliveryAddress: "addr-1",
			Items: []domain.OrderItem{{Name: "Green Tea", PricingTier: domain.TierRetail}}},
		{OrderID: "ORD-00000002", UserID: "u1", OrderStatus: domain.OrderStatusDelivered, DeliveryAddress: "addr-2",
			Items: []domain.OrderItem{{Name: "Coffee Beans", PricingTier: domain.TierWholesale}}},
		{OrderID: "ORD-00000003", UserID: "u2", OrderStatus: domain.OrderStatusPending, DeliveryAddress: "addr-3",
			Items: []domain.OrderItem{{Name: "Black Tea", PricingTier: domain.TierWholesale}}},
	}
	for i := range seed {
		if err := orders.Create(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	// newest first
	all, total, err := orders.List(ctx, OrderFilter{}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || all[0].OrderID != "ORD-00000003" || all[2].OrderID != "ORD-00000001" {
		t.Fatalf("unexpected order: total=%d first=%s", total, all[0].OrderID)
	}

	// status
	list, total, _ := orders.List(ctx, OrderFilter{Status: domain.OrderStatusPending}, Page{})
	if total != 2 || len(list) != 2 {
		t.Fatalf("status filter: %d", total)
	}

	// tier
	_, total, _ = orders.List(ctx, OrderFilter{Tier: domain.TierWholesale}, Page{})
	if total != 2 {
		t.Fatalf("tier filter: %d", total)
	}

	// search by item name, case-insensitive
	_, total, _ = orders.List(ctx, OrderFilter{Search: "tea"}, Page{})
	if total != 2 {
		t.Fatalf("search by item name: %d", total)
	}

	// search by address id resolved from mobile
	list, total, _ = orders.List(ctx, OrderFilter{Search: "555", SearchAddressIDs: []string{"addr-2"}}, Page{})
	if total != 1 || list[0].OrderID != "ORD-00000002" {
		t.Fatalf("search by address: %d", total)
	}

	// page window keeps the full count
	list, total, _ = orders.List(ctx, OrderFilter{}, Page{Offset: 2, Limit: 2})
	if total != 3 || len(list) != 1 || list[0].OrderID != "ORD-00000001" {
		t.Fatalf("page: total=%d len=%d", total, len(list))
	}
	list, _, _ = orders.List(ctx, OrderFilter{}, Page{Offset: 10, Limit: 2})
	if len(list) != 0 {
		t.Fatalf("expected empty page")
	}

	// offsets outside the slice never panic
	for _, off := range []int{-5, math.MaxInt} {
		list, total, err = orders.List(ctx, OrderFilter{}, Page{Offset: off, Limit: math.MaxInt})
		if err != nil || total != 3 {
			t.Fatalf("offset %d: total=%d err=%v", off, total, err)
		}
		if off < 0 && len(list) != 3 || off > 0 && len(list) != 0 {
			t.Fatalf("offset %d: len=%d", off, len(list))
		}
	}
}

func TestRollsBack(t *testing.T) {
	if RollsBack(NewMemoryTx(NewMemoryStore())) {
		t.Fatal("memory tx keeps writes made before an error")
	}
}

func TestMemoryOrders_SetStatusKeepsItems(t *testing.T) {
	ctx := context.Background()
	orders := NewMemoryOrders(NewMemoryStore())
	o := domain.Order{
		OrderID:     "ORD-00000009",
		OrderStatus: domain.OrderStatusPending,
		Items:       []domain.OrderItem{{Name: "A", Quantity: 2, Price: 3}},
		Subtotal:    6,
		Total:       11,
	}
	if err := orders.Create(ctx, &o); err != nil {
		t.Fatal(err)
	}
	up, err := orders.SetStatus(ctx, o.ID, domain.OrderStatusShipped)
	if err != nil {
		t.Fatal(err)
	}
	if up.OrderStatus != domain.OrderStatusShipped || up.Total != 11 || len(up.Items) != 1 {
		t.Fatalf("unexpected update %+v", up)
	}
	if _, err := orders.SetStatus(ctx, "missing", domain.OrderStatusShipped); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryOrders_Stats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := NewMemoryOrders(store)
	seed := []domain.Order{
		{OrderID: "ORD-1", OrderStatus: domain.OrderStatusPending, Total: 10.1},
		{OrderID: "ORD-2", OrderStatus: domain.OrderStatusDelivered, Total: 20.2,
			Items: []domain.OrderItem{{PricingTier: domain.TierWholesale}}},
		{OrderID: "ORD-3", OrderStatus: domain.OrderStatusDelivered, Total: 30.3},
	}
	for i := range seed {
		if err := orders.Create(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	st, err := orders.Stats(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalOrders != 3 || st.PendingOrders != 1 || st.DeliveredOrders != 2 || st.WholesaleOrders != 1 {
		t.Fatalf("unexpected counters %+v", st)
	}
	if st.TodayOrders != 3 {
		t.Fatalf("today expected 3, got %d", st.TodayOrders)
	}
	if st.TotalRevenue != 50.5 {
		t.Fatalf("revenue expected 50.5, got %v", st.TotalRevenue)
	}

	st, _ = orders.Stats(ctx, time.Now().Add(time.Hour))
	if st.TodayOrders != 0 {
		t.Fatalf("today expected 0, got %d", st.TodayOrders)
	}
}

func TestMemoryCarts_Lifecycle(t *testing.T) {
	ctx := context.Background()
	carts := NewMemoryCarts(NewMemoryStore())
	for _, pid := range []string{"p1", "p2"} {
		l := domain.CartLine{UserID: "u1", ProductID: pid, Quantity: 1}
		if err := carts.Add(ctx, &l); err != nil {
			t.Fatal(err)
		}
	}
	other := domain.CartLine{UserID: "u2", ProductID: "p1", Quantity: 1}
	_ = carts.Add(ctx, &other)

	lines, _ := carts.ListByUser(ctx, "u1")
	if len(lines) != 2 || lines[0].ProductID != "p1" {
		t.Fatalf("unexpected lines %+v", lines)
	}
	if err := carts.Delete(ctx, "u1", other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleting another user's line must fail, got %v", err)
	}
	n, err := carts.DeleteByUser(ctx, "u1")
	if err != nil || n != 2 {
		t.Fatalf("delete by user: n=%d err=%v", n, err)
	}
	lines, _ = carts.ListByUser(ctx, "u2")
	if len(lines) != 1 {
		t.Fatalf("other user's cart must survive")
	}
}

func TestList_Filtering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	add := func(n string, price float64) {
		p := domain.Product{Name: n, Price: price, Stock: 1}
		if err := store.Create(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}
	add("Aspirin", 100)
	add("Paracetamol", 50)
	add("Ibuprofen", 150)

	// name contains
	list, _ := store.List(ctx, ProductFilter{NameSubstring: "in"})
	if len(list) == 0 {
		t.Fatalf("name filter empty")
	}

	// min
	min := 100.0
	list, _ = store.List(ctx, ProductFilter{MinPrice: &min})
	for _, p := range list {
		if p.Price < min {
			t.Fatalf("min filter fail")
		}
	}

	// max
	max := 100.0
	list, _ = store.List(ctx, ProductFilter{MaxPrice: &max})
	for _, p := range list {
		if p.Price > max {
			t.Fatalf("max filter fail")
		}
	}
}
