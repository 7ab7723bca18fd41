package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrConflict нарушение уникального ограничения при записи
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock недостаточно остатка при резервировании
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductFilter параметры фильтрации списка товаров
type ProductFilter struct {
	NameSubstring string
	MinPrice      *float64
	MaxPrice      *float64
}

// ProductRepository интерфейс репозитория товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	// ReserveStock уменьшает остаток на qty, только если остаток не меньше qty
	ReserveStock(ctx context.Context, id string, qty int64) error
	// ReleaseStock возвращает ранее зарезервированное количество
	ReleaseStock(ctx context.Context, id string, qty int64) error
}

// CartRepository интерфейс репозитория корзины
type CartRepository interface {
	Add(ctx context.Context, l *domain.CartLine) error
	SetQuantity(ctx context.Context, userID, id string, qty int64) error
	ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// AddressRepository интерфейс репозитория адресов
type AddressRepository interface {
	Create(ctx context.Context, a *domain.Address) error
	GetByID(ctx context.Context, id string) (*domain.Address, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Address, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Address, error)
	// IDsByMobile id адресов, телефон которых содержит подстроку
	IDsByMobile(ctx context.Context, substr string) ([]string, error)
}

// OrderFilter параметры фильтрации заказов. Search ищет по номеру заказа,
// названиям позиций и адресам из SearchAddressIDs
type OrderFilter struct {
	UserID           string
	Status           domain.OrderStatus
	Tier             domain.PricingTier
	Search           string
	SearchAddressIDs []string
}

// Page окно выборки; Limit 0: без ограничения
type Page struct {
	Offset int
	Limit  int
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	// Create возвращает ErrConflict, если OrderID уже занят
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error)
	// List возвращает заказы от новых к старым и общее число совпадений
	List(ctx context.Context, f OrderFilter, p Page) ([]domain.Order, int64, error)
	SetStatus(ctx context.Context, id string, s domain.OrderStatus) (*domain.Order, error)
	SetPaymentStatus(ctx context.Context, id string, s domain.PaymentStatus) (*domain.Order, error)
	Delete(ctx context.Context, id string) error
	// Stats считает заказы; "сегодня": созданные не раньше since
	Stats(ctx context.Context, since time.Time) (domain.OrderStats, error)
}

// TxManager абстракция транзакции. Для in-memory: глобальная блокировка записи.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Rollbacker реализуют менеджеры, которые откатывают все записи fn при ошибке
type Rollbacker interface {
	RollsBack() bool
}

// RollsBack сообщает, откатывает ли tx изменения сам
func RollsBack(tx TxManager) bool {
	r, ok := tx.(Rollbacker)
	return ok && r.RollsBack()
}

// MatchOrder проверяет заказ на соответствие фильтру
func MatchOrder(o domain.Order, f OrderFilter) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.Status != "" && o.OrderStatus != f.Status {
		return false
	}
	if f.Tier != "" && !o.HasTier(f.Tier) {
		return false
	}
	if f.Search == "" {
		return true
	}
	if containsIgnoreCase(o.OrderID, f.Search) {
		return true
	}
	for _, it := range o.Items {
		if containsIgnoreCase(it.Name, f.Search) {
			return true
		}
	}
	for _, id := range f.SearchAddressIDs {
		if o.DeliveryAddress == id {
			return true
		}
	}
	return false
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
