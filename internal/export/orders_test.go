package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	"marketplace/internal/domain"
)

func TestWriteOrders(t *testing.T) {
	created := time.Date(2025, 9, 28, 14, 30, 0, 0, time.UTC)
	orders := []domain.OrderView{
		{
			OrderID: "ORD-1A2B3C4D",
			UserID:  "u1",
			DeliveryAddress: &domain.Address{
				Line: "12 Market St", City: "Pune", Pincode: "411001", Mobile: "9876543210",
			},
			Items: []domain.OrderItemView{
				{OrderItem: domain.OrderItem{Name: "A", Quantity: 2, PricingTier: domain.TierRetail}},
				{OrderItem: domain.OrderItem{Name: "B", Quantity: 3, PricingTier: domain.TierWholesale}},
			},
			Subtotal:      65,
			TotalSavings:  15,
			Total:         65,
			PaymentMethod: "cod",
			OrderStatus:   domain.OrderStatusPending,
			PaymentStatus: domain.PaymentStatusPending,
			CreatedAt:     created,
		},
		{OrderID: "ORD-00000001", OrderStatus: domain.OrderStatusDelivered, CreatedAt: created},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOrders(&buf, orders))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Orders", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0].Cells
	assert.Equal(t, "Order ID", header[0].String())
	assert.Len(t, header, len(orderHeaders))

	first := sheet.Rows[1].Cells
	assert.Equal(t, "ORD-1A2B3C4D", first[0].String())
	assert.Equal(t, "2025-09-28 14:30:00", first[1].String())
	assert.Equal(t, "9876543210", first[3].String())
	assert.Equal(t, "12 Market St, Pune, 411001", first[4].String())
	assert.Equal(t, "A x2; B x3", first[5].String())
	assert.Equal(t, "wholesale", first[6].String())
	total, err := first[10].Float()
	require.NoError(t, err)
	assert.Equal(t, 65.0, total)

	second := sheet.Rows[2].Cells
	assert.Equal(t, "retail", second[6].String())
	assert.Equal(t, "delivered", second[12].String())
}
