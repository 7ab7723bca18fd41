package service

import (
	"context"
	"errors"
	"testing"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
)

func setupPS(t *testing.T) *ProductService {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewProductService(store)
}

func TestProduct_Create_Valid(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	p, err := ps.Create(ctx, domain.Product{Name: "Basmati 5kg", Price: 100, Stock: 10})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("expected id assigned")
	}
	if p.MOQ != 1 {
		t.Fatalf("expected moq default 1, got %d", p.MOQ)
	}
}

func TestProduct_Create_Invalid(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	cases := []domain.Product{
		{Name: "", Price: 1, Stock: 1},
		{Name: "N", Price: -1, Stock: 1},
		{Name: "N", Price: 1, Stock: -1},
		{Name: "N", Price: 1, Stock: 1, MOQ: -2},
		{Name: "N", Price: 1, Stock: 1, WholesaleEnabled: true},
	}
	for i, p := range cases {
		if _, err := ps.Create(ctx, p); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestProduct_Update_Get_Delete(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	p, _ := ps.Create(ctx, domain.Product{Name: "A", Price: 10, Stock: 5})

	p.Price = 12
	p.WholesaleEnabled = true
	p.WholesalePrice = 9
	p.MOQ = 6
	if _, err := ps.Update(ctx, *p); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := ps.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Price != 12 || got.WholesalePrice != 9 || got.MOQ != 6 {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := ps.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ps.GetByID(ctx, p.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := ps.Delete(ctx, p.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestProduct_List_Filter(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	_, _ = ps.Create(ctx, domain.Product{Name: "Green tea", Price: 4, Stock: 1})
	_, _ = ps.Create(ctx, domain.Product{Name: "Black tea", Price: 6, Stock: 1})
	_, _ = ps.Create(ctx, domain.Product{Name: "Coffee", Price: 9, Stock: 1})

	minPrice := 5.0
	list, err := ps.List(ctx, repository.ProductFilter{NameSubstring: "TEA", MinPrice: &minPrice})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Black tea" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestCart_AddMergesQuantity(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	carts := NewCartService(repository.NewMemoryCarts(store), store)
	p := domain.Product{Name: "Soap", Price: 2, Stock: 50}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatalf("create product: %v", err)
	}

	first, err := carts.AddItem(ctx, "u1", p.ID, 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := carts.AddItem(ctx, "u1", p.ID, 3)
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if first.ID != second.ID || second.Quantity != 5 {
		t.Fatalf("expected merged line with qty 5, got %+v", second)
	}
	lines, _ := carts.List(ctx, "u1")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}

	if _, err := carts.AddItem(ctx, "u1", "missing", 1); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
	if _, err := carts.AddItem(ctx, "u1", p.ID, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero qty, got %v", err)
	}

	if err := carts.RemoveItem(ctx, "u2", first.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("foreign cart line must not be removable, got %v", err)
	}
	if err := carts.RemoveItem(ctx, "u1", first.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestAddress_CreateAndList(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	as := NewAddressService(repository.NewMemoryAddresses(store))

	if _, err := as.Create(ctx, domain.Address{UserID: "u1", Line: "1 Main"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected mobile required, got %v", err)
	}
	a, err := as.Create(ctx, domain.Address{UserID: "u1", Line: "1 Main", Mobile: "555"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	list, _ := as.List(ctx, "u1")
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("unexpected list: %+v", list)
	}
}
