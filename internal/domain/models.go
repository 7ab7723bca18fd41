package domain

import "time"

// Image ссылка на изображение товара
type Image struct {
	URL string `json:"url" bson:"url"`
}

// Product представляет товар каталога. Stock не бывает отрицательным
type Product struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Images           []Image   `json:"images"`
	Stock            int64     `json:"stock"`
	Price            float64   `json:"price"`
	WholesaleEnabled bool      `json:"wholesale_enabled"`
	WholesalePrice   float64   `json:"wholesale_price"`
	MOQ              int64     `json:"moq"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PrimaryImage возвращает URL первого изображения или пустую строку
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

// MinOrderQuantity порог оптовой цены; незаданный MOQ считается равным 1
func (p Product) MinOrderQuantity() int64 {
	if p.MOQ <= 0 {
		return 1
	}
	return p.MOQ
}

// Address адрес доставки пользователя
type Address struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Line      string    `json:"address_line"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Pincode   string    `json:"pincode"`
	Country   string    `json:"country"`
	Mobile    string    `json:"mobile"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine позиция корзины: товар и количество
type CartLine struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses все допустимые статусы заказа
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// PaymentStatus статус оплаты заказа
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// PricingTier по какой цене посчитана позиция: розница или опт
type PricingTier string

const (
	TierRetail    PricingTier = "retail"
	TierWholesale PricingTier = "wholesale"
)

// PaymentCashOnDelivery способ оплаты по умолчанию (наложенный платёж)
const PaymentCashOnDelivery = "cod"

// OrderItem снимок позиции на момент оформления заказа.
// Последующие изменения каталога его не затрагивают
type OrderItem struct {
	ProductID   string      `json:"product_id"`
	Name        string      `json:"name"`
	Image       string      `json:"image"`
	Quantity    int64       `json:"quantity"`
	Price       float64     `json:"price"`
	PricingTier PricingTier `json:"pricing_tier"`
}

// Order сущность заказа. После создания меняются только статусы
type Order struct {
	ID              string        `json:"id"`
	OrderID         string        `json:"order_id"`
	UserID          string        `json:"user_id"`
	Items           []OrderItem   `json:"items"`
	DeliveryAddress string        `json:"delivery_address"`
	Subtotal        float64       `json:"subtotal"`
	Shipping        float64       `json:"shipping"`
	Total           float64       `json:"total"`
	TotalSavings    float64       `json:"total_savings"`
	PaymentMethod   string        `json:"payment_method"`
	Notes           string        `json:"notes"`
	OrderStatus     OrderStatus   `json:"order_status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// HasTier есть ли в заказе позиция с указанным типом цены
func (o Order) HasTier(t PricingTier) bool {
	for _, it := range o.Items {
		if it.PricingTier == t {
			return true
		}
	}
	return false
}

// OrderItemView позиция заказа вместе с текущей карточкой товара.
// Product равен nil, если товар удалён после оформления
type OrderItemView struct {
	OrderItem
	Product *Product `json:"product"`
}

// OrderView заказ с подгруженными адресом и товарами
type OrderView struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItemView `json:"items"`
	DeliveryAddress *Address        `json:"delivery_address"`
	Subtotal        float64         `json:"subtotal"`
	Shipping        float64         `json:"shipping"`
	Total           float64         `json:"total"`
	TotalSavings    float64         `json:"total_savings"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes"`
	OrderStatus     OrderStatus     `json:"order_status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderStats счётчики для админ-панели
type OrderStats struct {
	TotalOrders     int64   `json:"totalOrders"`
	PendingOrders   int64   `json:"pendingOrders"`
	DeliveredOrders int64   `json:"deliveredOrders"`
	WholesaleOrders int64   `json:"wholesaleOrders"`
	TodayOrders     int64   `json:"todayOrders"`
	TotalRevenue    float64 `json:"totalRevenue"`
}

// Pagination метаданные страницы списка заказов
type Pagination struct {
	CurrentPage   int   `json:"currentPage"`
	TotalPages    int   `json:"totalPages"`
	TotalOrders   int64 `json:"totalOrders"`
	OrdersPerPage int   `json:"ordersPerPage"`
}
