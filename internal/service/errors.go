package service

import (
	"errors"
	"fmt"

	"marketplace/internal/repository"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStatus     = errors.New("invalid status")
)

// InsufficientStockError запрошено больше, чем есть на складе
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Only %d items available for %s", e.Available, e.ProductName)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// MissingProductError товар из корзины больше не существует
type MissingProductError struct {
	CartLineID string
	ProductID  string
}

func (e *MissingProductError) Error() string {
	return fmt.Sprintf("Product not found for cart item %s", e.CartLineID)
}

func (e *MissingProductError) Unwrap() error { return repository.ErrNotFound }

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
