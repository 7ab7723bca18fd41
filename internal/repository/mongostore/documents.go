package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/domain"
)

type productDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Name             string             `bson:"name"`
	Images           []domain.Image     `bson:"images"`
	Stock            int64              `bson:"stock"`
	Price            float64            `bson:"price"`
	WholesaleEnabled bool               `bson:"wholesaleEnabled"`
	WholesalePrice   float64            `bson:"wholesalePrice"`
	MOQ              int64              `bson:"moq"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

func toProductDoc(p domain.Product) productDoc {
	d := productDoc{
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
	if oid, err := primitive.ObjectIDFromHex(p.ID); err == nil {
		d.ID = oid
	}
	return d
}

func (d productDoc) domain() domain.Product {
	return domain.Product{
		ID:               d.ID.Hex(),
		Name:             d.Name,
		Images:           d.Images,
		Stock:            d.Stock,
		Price:            d.Price,
		WholesaleEnabled: d.WholesaleEnabled,
		WholesalePrice:   d.WholesalePrice,
		MOQ:              d.MOQ,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type cartDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	ProductID string             `bson:"productId"`
	Quantity  int64              `bson:"quantity"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d cartDoc) domain() domain.CartLine {
	return domain.CartLine{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		CreatedAt: d.CreatedAt,
	}
}

type addressDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	Line      string             `bson:"addressLine"`
	City      string             `bson:"city"`
	State     string             `bson:"state"`
	Pincode   string             `bson:"pincode"`
	Country   string             `bson:"country"`
	Mobile    string             `bson:"mobile"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func toAddressDoc(a domain.Address) addressDoc {
	return addressDoc{
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

func (d addressDoc) domain() domain.Address {
	return domain.Address{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Line:      d.Line,
		City:      d.City,
		State:     d.State,
		Pincode:   d.Pincode,
		Country:   d.Country,
		Mobile:    d.Mobile,
		CreatedAt: d.CreatedAt,
	}
}

type orderItemDoc struct {
	ProductID   string  `bson:"productId"`
	Name        string  `bson:"name"`
	Image       string  `bson:"image"`
	Quantity    int64   `bson:"quantity"`
	Price       float64 `bson:"price"`
	PricingTier string  `bson:"pricingTier"`
}

type orderDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	OrderID         string             `bson:"orderId"`
	UserID          string             `bson:"userId"`
	Items           []orderItemDoc     `bson:"items"`
	DeliveryAddress string             `bson:"deliveryAddress"`
	Subtotal        float64            `bson:"subtotal"`
	Shipping        float64            `bson:"shipping"`
	Total           float64            `bson:"total"`
	TotalSavings    float64            `bson:"totalSavings"`
	PaymentMethod   string             `bson:"paymentMethod"`
	Notes           string             `bson:"notes,omitempty"`
	OrderStatus     string             `bson:"orderStatus"`
	PaymentStatus   string             `bson:"paymentStatus"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func toOrderDoc(o domain.Order) orderDoc {
	items := make([]orderItemDoc, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDoc{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Image:       it.Image,
			Quantity:    it.Quantity,
			Price:       it.Price,
			PricingTier: string(it.PricingTier),
		})
	}
	return orderDoc{
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

func (d orderDoc) domain() domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Image:       it.Image,
			Quantity:    it.Quantity,
			Price:       it.Price,
			PricingTier: domain.PricingTier(it.PricingTier),
		})
	}
	return domain.Order{
		ID:              d.ID.Hex(),
		OrderID:         d.OrderID,
		UserID:          d.UserID,
		Items:           items,
		DeliveryAddress: d.DeliveryAddress,
		Subtotal:        d.Subtotal,
		Shipping:        d.Shipping,
		Total:           d.Total,
		TotalSavings:    d.TotalSavings,
		PaymentMethod:   d.PaymentMethod,
		Notes:           d.Notes,
		OrderStatus:     domain.OrderStatus(d.OrderStatus),
		PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
