// Package export выгружает заказы в Excel для админки
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx"

	"marketplace/internal/domain"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timeLayout  = "2006-01-02 15:04:05"
)

var orderHeaders = []string{
	"Order ID", "Created", "User", "Mobile", "Address", "Items", "Type",
	"Subtotal", "Shipping", "Savings", "Total", "Payment method", "Order status", "Payment status",
}

// WriteOrders пишет xlsx-файл с листом Orders в w
func WriteOrders(w io.Writer, orders []domain.OrderView) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range orderHeaders {
		header.AddCell().SetValue(h)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.OrderID)
		row.AddCell().SetValue(o.CreatedAt.Format(timeLayout))
		row.AddCell().SetValue(o.UserID)
		mobile, address := "", ""
		if a := o.DeliveryAddress; a != nil {
			mobile = a.Mobile
			address = formatAddress(*a)
		}
		row.AddCell().SetValue(mobile)
		row.AddCell().SetValue(address)
		row.AddCell().SetValue(formatItems(o.Items))
		row.AddCell().SetValue(orderType(o))
		row.AddCell().SetValue(o.Subtotal)
		row.AddCell().SetValue(o.Shipping)
		row.AddCell().SetValue(o.TotalSavings)
		row.AddCell().SetValue(o.Total)
		row.AddCell().SetValue(o.PaymentMethod)
		row.AddCell().SetValue(string(o.OrderStatus))
		row.AddCell().SetValue(string(o.PaymentStatus))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func formatAddress(a domain.Address) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Line, a.City, a.State, a.Pincode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func formatItems(items []domain.OrderItemView) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
	}
	return strings.Join(parts, "; ")
}

func orderType(o domain.OrderView) string {
	for _, it := range o.Items {
		if it.PricingTier == domain.TierWholesale {
			return string(domain.TierWholesale)
		}
	}
	return string(domain.TierRetail)
}
