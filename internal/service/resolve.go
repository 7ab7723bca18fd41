package service

import (
	"context"
	"fmt"

	"marketplace/internal/domain"
)

// resolve подгружает адреса и товары пачкой и собирает представления заказов
func (s *OrderService) resolve(ctx context.Context, orders []domain.Order) ([]domain.OrderView, error) {
	addrIDs := make([]string, 0, len(orders))
	productIDs := make([]string, 0)
	for _, o := range orders {
		addrIDs = append(addrIDs, o.DeliveryAddress)
		for _, it := range o.Items {
			productIDs = append(productIDs, it.ProductID)
		}
	}

	addresses := make(map[string]*domain.Address)
	if ids := uniq(addrIDs); len(ids) > 0 {
		list, err := s.addresses.GetByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load addresses: %w", err)
		}
		for i := range list {
			addresses[list[i].ID] = &list[i]
		}
	}

	products := make(map[string]*domain.Product)
	if ids := uniq(productIDs); len(ids) > 0 {
		list, err := s.products.GetByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load products: %w", err)
		}
		for i := range list {
			products[list[i].ID] = &list[i]
		}
	}

	views := make([]domain.OrderView, 0, len(orders))
	for _, o := range orders {
		v := viewOf(o)
		v.DeliveryAddress = addresses[o.DeliveryAddress]
		for i := range v.Items {
			v.Items[i].Product = products[v.Items[i].ProductID]
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *OrderService) resolveOne(ctx context.Context, o domain.Order) (*domain.OrderView, error) {
	views, err := s.resolve(ctx, []domain.Order{o})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// resolveOrReport используется после успешной записи: ошибка подгрузки
// не должна превращать сохранённый заказ в ошибку
func (s *OrderService) resolveOrReport(ctx context.Context, o domain.Order) domain.OrderView {
	v, err := s.resolveOne(ctx, o)
	if err != nil {
		s.log.WarnContext(ctx, "resolve order references", "order_id", o.OrderID, "error", err)
		return viewOf(o)
	}
	return *v
}

// viewOf представление заказа без подгруженных ссылок
func viewOf(o domain.Order) domain.OrderView {
	items := make([]domain.OrderItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, domain.OrderItemView{OrderItem: it})
	}
	return domain.OrderView{
		ID:            o.ID,
		OrderID:       o.OrderID,
		UserID:        o.UserID,
		Items:         items,
		Subtotal:      o.Subtotal,
		Shipping:      o.Shipping,
		Total:         o.Total,
		TotalSavings:  o.TotalSavings,
		PaymentMethod: o.PaymentMethod,
		Notes:         o.Notes,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
