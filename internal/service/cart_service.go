package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
)

// CartService корзина пользователя: добавление, просмотр, удаление позиций
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// AddItem добавляет товар в корзину; повторное добавление увеличивает количество
func (s *CartService) AddItem(ctx context.Context, userID, productID string, qty int64) (*domain.CartLine, error) {
	if userID == "" || productID == "" || qty <= 0 {
		return nil, ErrInvalidInput
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, err)
		}
		return nil, err
	}

	lines, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if l.ProductID != productID {
			continue
		}
		l.Quantity += qty
		if err := s.carts.SetQuantity(ctx, userID, l.ID, l.Quantity); err != nil {
			return nil, err
		}
		return &l, nil
	}

	l := domain.CartLine{UserID: userID, ProductID: productID, Quantity: qty}
	if err := s.carts.Add(ctx, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *CartService) List(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.carts.ListByUser(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, lineID string) error {
	if userID == "" || lineID == "" {
		return ErrInvalidInput
	}
	return s.carts.Delete(ctx, userID, lineID)
}

// AddressService адреса доставки пользователя
type AddressService struct {
	repo repository.AddressRepository
}

func NewAddressService(repo repository.AddressRepository) *AddressService {
	return &AddressService{repo: repo}
}

func (s *AddressService) Create(ctx context.Context, a domain.Address) (*domain.Address, error) {
	if a.UserID == "" || strings.TrimSpace(a.Line) == "" || strings.TrimSpace(a.Mobile) == "" {
		return nil, ErrInvalidInput
	}
	cp := a
	cp.ID = ""
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *AddressService) List(ctx context.Context, userID string) ([]domain.Address, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByUser(ctx, userID)
}
