// Package pricing считает цены позиций, доставку и итоги заказа.
//
// Вся арифметика ведётся в decimal; округление до копеек (2 знака)
// происходит только на выходе из пакета.
package pricing

import (
	"github.com/shopspring/decimal"

	"marketplace/internal/domain"
)

const currencyPlaces = 2

// Policy правило доставки: заказы строго дороже FreeShippingOver
// доставляются бесплатно, остальные платят FlatShipping
type Policy struct {
	FreeShippingOver decimal.Decimal
	FlatShipping     decimal.Decimal
}

// DefaultPolicy бесплатная доставка свыше 50, иначе 5
func DefaultPolicy() Policy {
	return Policy{
		FreeShippingOver: decimal.NewFromInt(50),
		FlatShipping:     decimal.NewFromInt(5),
	}
}

// NewPolicy собирает Policy из значений конфигурации
func NewPolicy(freeOver, flat float64) Policy {
	return Policy{
		FreeShippingOver: decimal.NewFromFloat(freeOver),
		FlatShipping:     decimal.NewFromFloat(flat),
	}
}

// Line товар и запрошенное количество
type Line struct {
	Product  domain.Product
	Quantity int64
}

// LineQuote расчёт одной позиции
type LineQuote struct {
	Item     domain.OrderItem
	Subtotal decimal.Decimal
	Savings  decimal.Decimal
}

// Quote расчёт всей корзины
type Quote struct {
	Lines    []LineQuote
	Subtotal decimal.Decimal
	Savings  decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// IsWholesale применяется ли оптовая цена при количестве qty
func IsWholesale(p domain.Product, qty int64) bool {
	return p.WholesaleEnabled && qty >= p.MinOrderQuantity()
}

// PriceLine считает позицию независимо от остальных
func PriceLine(l Line) LineQuote {
	p := l.Product
	qty := decimal.NewFromInt(l.Quantity)
	retail := decimal.NewFromFloat(p.Price)

	unit := retail
	tier := domain.TierRetail
	savings := decimal.Zero
	if IsWholesale(p, l.Quantity) {
		wholesale := decimal.NewFromFloat(p.WholesalePrice)
		unit = wholesale
		tier = domain.TierWholesale
		savings = retail.Sub(wholesale).Mul(qty)
	}

	return LineQuote{
		Item: domain.OrderItem{
			ProductID:   p.ID,
			Name:        p.Name,
			Image:       p.PrimaryImage(),
			Quantity:    l.Quantity,
			Price:       Amount(unit),
			PricingTier: tier,
		},
		Subtotal: unit.Mul(qty),
		Savings:  savings,
	}
}

// Shipping стоимость доставки для заданной суммы
func (pol Policy) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(pol.FreeShippingOver) {
		return decimal.Zero
	}
	return pol.FlatShipping
}

// Price считает все позиции и итоги заказа
func (pol Policy) Price(lines []Line) Quote {
	q := Quote{
		Lines:    make([]LineQuote, 0, len(lines)),
		Subtotal: decimal.Zero,
		Savings:  decimal.Zero,
	}
	for _, l := range lines {
		lq := PriceLine(l)
		q.Subtotal = q.Subtotal.Add(lq.Subtotal)
		q.Savings = q.Savings.Add(lq.Savings)
		q.Lines = append(q.Lines, lq)
	}
	q.Shipping = pol.Shipping(q.Subtotal)
	q.Total = q.Subtotal.Add(q.Shipping)
	return q
}

// Items снимки позиций для заказа
func (q Quote) Items() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, l.Item)
	}
	return items
}

// Apply переносит округлённые итоги в заказ
func (q Quote) Apply(o *domain.Order) {
	o.Items = q.Items()
	o.Subtotal = Amount(q.Subtotal)
	o.Shipping = Amount(q.Shipping)
	o.Total = Amount(q.Total)
	o.TotalSavings = Amount(q.Savings)
}

// Amount округляет до копеек
func Amount(d decimal.Decimal) float64 {
	return d.Round(currencyPlaces).InexactFloat64()
}

// Sum складывает суммы без накопления ошибки float
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return Amount(total)
}
