package domain

import "time"

// OrderEventType тип события по заказу
type OrderEventType string

const (
	OrderCreated OrderEventType = "order.created"
	OrderUpdated OrderEventType = "order.updated"
	OrderDeleted OrderEventType = "order.deleted"
)

// OrderEvent событие для ленты заказов в админке
type OrderEvent struct {
	Type  OrderEventType `json:"type"`
	Order OrderView      `json:"order"`
	At    time.Time      `json:"at"`
}
