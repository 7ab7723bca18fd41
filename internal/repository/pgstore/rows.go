package pgstore

import (
	"time"

	"marketplace/internal/domain"
)

type productRow struct {
	ID               string         `gorm:"primaryKey;type:uuid"`
	Name             string         `gorm:"not null;index"`
	Images           []domain.Image `gorm:"serializer:json"`
	Stock            int64          `gorm:"not null;check:stock >= 0"`
	Price            float64        `gorm:"not null"`
	WholesaleEnabled bool
	WholesalePrice   float64
	MOQ              int64 `gorm:"column:moq"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (productRow) TableName() string { return "products" }

func toProductRow(p domain.Product) productRow {
	return productRow{
		ID:               p.ID,
		Name:             p.Name,
		Images:           p.Images,
		Stock:            p.Stock,
		Price:            p.Price,
		WholesaleEnabled: p.WholesaleEnabled,
		WholesalePrice:   p.WholesalePrice,
		MOQ:              p.MOQ,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (r productRow) domain() domain.Product {
	return domain.Product{
		ID:               r.ID,
		Name:             r.Name,
		Images:           r.Images,
		Stock:            r.Stock,
		Price:            r.Price,
		WholesaleEnabled: r.WholesaleEnabled,
		WholesalePrice:   r.WholesalePrice,
		MOQ:              r.MOQ,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type cartRow struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	UserID    string `gorm:"not null;index"`
	ProductID string `gorm:"not null"`
	Quantity  int64  `gorm:"not null"`
	Seq       int64  `gorm:"autoIncrement;not null"`
	CreatedAt time.Time
}

func (cartRow) TableName() string { return "cart_items" }

func (r cartRow) domain() domain.CartLine {
	return domain.CartLine{
		ID:        r.ID,
		UserID:    r.UserID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		CreatedAt: r.CreatedAt,
	}
}

type addressRow struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	UserID    string `gorm:"not null;index"`
	Line      string `gorm:"column:address_line"`
	City      string
	State     string
	Pincode   string
	Country   string
	Mobile    string `gorm:"index"`
	CreatedAt time.Time
}

func (addressRow) TableName() string { return "addresses" }

func toAddressRow(a domain.Address) addressRow {
	return addressRow{
		ID:        a.ID,
		UserID:    a.UserID,
		Line:      a.Line,
		City:      a.City,
		State:     a.State,
		Pincode:   a.Pincode,
		Country:   a.Country,
		Mobile:    a.Mobile,
		CreatedAt: a.CreatedAt,
	}
}

func (r addressRow) domain() domain.Address {
	return domain.Address{
		ID:        r.ID,
		UserID:    r.UserID,
		Line:      r.Line,
		City:      r.City,
		State:     r.State,
		Pincode:   r.Pincode,
		Country:   r.Country,
		Mobile:    r.Mobile,
		CreatedAt: r.CreatedAt,
	}
}

type orderRow struct {
	ID              string         `gorm:"primaryKey;type:uuid"`
	OrderID         string         `gorm:"not null;uniqueIndex"`
	UserID          string         `gorm:"not null;index"`
	Items           []orderItemRow `gorm:"foreignKey:OrderRef;constraint:OnDelete:CASCADE"`
	DeliveryAddress string         `gorm:"not null"`
	Subtotal        float64
	Shipping        float64
	Total           float64
	TotalSavings    float64
	PaymentMethod   string
	Notes           string
	OrderStatus     string    `gorm:"not null;index"`
	PaymentStatus   string    `gorm:"not null"`
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
}

func (orderRow) TableName() string { return "orders" }

type orderItemRow struct {
	ID          uint   `gorm:"primaryKey"`
	OrderRef    string `gorm:"type:uuid;not null;index"`
	Position    int    `gorm:"not null"`
	ProductID   string `gorm:"not null"`
	Name        string
	Image       string
	Quantity    int64
	Price       float64
	PricingTier string `gorm:"index"`
}

func (orderItemRow) TableName() string { return "order_items" }

func toOrderRow(o domain.Order) orderRow {
	items := make([]orderItemRow, 0, len(o.Items))
	for i, it := range o.Items {
		items = append(items, orderItemRow{
			OrderRef:    o.ID,
			Position:    i,
			ProductID:   it.ProductID,
			Name:        it.Name,
			Image:       it.Image,
			Quantity:    it.Quantity,
			Price:       it.Price,
			PricingTier: string(it.PricingTier),
		})
	}
	return orderRow{
		ID:              o.ID,
		OrderID:         o.OrderID,
		UserID:          o.UserID,
		Items:           items,
		DeliveryAddress: o.DeliveryAddress,
		Subtotal:        o.Subtotal,
		Shipping:        o.Shipping,
		Total:           o.Total,
		TotalSavings:    o.TotalSavings,
		PaymentMethod:   o.PaymentMethod,
		Notes:           o.Notes,
		OrderStatus:     string(o.OrderStatus),
		PaymentStatus:   string(o.PaymentStatus),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (r orderRow) domain() domain.Order {
	items := make([]domain.OrderItem, len(r.Items))
	for i, it := range r.Items {
		pos := it.Position
		if pos < 0 || pos >= len(items) {
			pos = i
		}
		items[pos] = domain.OrderItem{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Image:       it.Image,
			Quantity:    it.Quantity,
			Price:       it.Price,
			PricingTier: domain.PricingTier(it.PricingTier),
		}
	}
	return domain.Order{
		ID:              r.ID,
		OrderID:         r.OrderID,
		UserID:          r.UserID,
		Items:           items,
		DeliveryAddress: r.DeliveryAddress,
		Subtotal:        r.Subtotal,
		Shipping:        r.Shipping,
		Total:           r.Total,
		TotalSavings:    r.TotalSavings,
		PaymentMethod:   r.PaymentMethod,
		Notes:           r.Notes,
		OrderStatus:     domain.OrderStatus(r.OrderStatus),
		PaymentStatus:   domain.PaymentStatus(r.PaymentStatus),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
