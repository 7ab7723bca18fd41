package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace/internal/export"
	"marketplace/internal/service"
)

// Order handlers
type createOrderReq struct {
	DeliveryAddress string `json:"delivery_address" binding:"required"`
	PaymentMethod   string `json:"payment_method"`
	Notes           string `json:"notes"`
}

// @Summary Create order from cart
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body createOrderReq true "Checkout"
// @Success 201 {object} envelope{data=domain.OrderView}
// @Failure 400 {object} envelope
// @Failure 401 {object} envelope
// @Failure 404 {object} envelope
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		field, msg := bindError(err)
		if field == "delivery_address" {
			msg = "Delivery address is required"
		}
		badRequest(c, msg)
		return
	}
	order, err := s.orders.CreateOrder(c.Request.Context(), currentUser(c), service.CreateOrderInput{
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Order created successfully", order)
}

// @Summary List my orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.OrderView}
// @Failure 401 {object} envelope
// @Router /orders [get]
func (s *Server) listUserOrders(c *gin.Context) {
	orders, err := s.orders.ListUserOrders(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Orders fetched successfully", orders)
}

// @Summary Get my order by order number
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order number, e.g. ORD-1A2B3C4D"
// @Success 200 {object} envelope{data=domain.OrderView}
// @Failure 404 {object} envelope
// @Router /orders/{orderId} [get]
func (s *Server) getUserOrder(c *gin.Context) {
	order, err := s.orders.GetUserOrder(c.Request.Context(), currentUser(c), c.Param("orderId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order fetched successfully", order)
}

type statusReq struct {
	OrderStatus string `json:"order_status" binding:"required"`
}

// @Summary Update order status by order number
// @Tags orders
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param orderId path string true "Order number"
// @Param input body statusReq true "New status"
// @Success 200 {object} envelope{data=domain.OrderView}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /orders/{orderId} [patch]
func (s *Server) updateOrderStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "order_status is required")
		return
	}
	order, err := s.orders.UpdateOrderStatus(c.Request.Context(), c.Param("orderId"), req.OrderStatus)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order status updated successfully", order)
}

// Admin handlers
type adminListQuery struct {
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Search string `form:"search"`
	Status string `form:"status"`
	Type   string `form:"type" binding:"omitempty,oneof=all retail wholesale"`
}

func (q adminListQuery) query() service.AdminQuery {
	return service.AdminQuery{Page: q.Page, Limit: q.Limit, Search: q.Search, Status: q.Status, Type: q.Type}
}

// @Summary List all orders
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page, from 1"
// @Param limit query int false "Page size"
// @Param search query string false "Order number, item name or mobile"
// @Param status query string false "Order status or all"
// @Param type query string false "all, retail or wholesale"
// @Success 200 {object} envelope{data=[]domain.OrderView,pagination=domain.Pagination}
// @Failure 400 {object} envelope
// @Router /orders/admin [get]
func (s *Server) listAllOrders(c *gin.Context) {
	var q adminListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	orders, page, err := s.orders.ListOrders(c.Request.Context(), q.query())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Message: "Orders fetched successfully", Data: orders, Pagination: &page})
}

// @Summary Order statistics
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} envelope{data=domain.OrderStats}
// @Router /orders/admin/stats [get]
func (s *Server) orderStats(c *gin.Context) {
	stats, err := s.orders.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order statistics fetched successfully", stats)
}

// @Summary Export orders to xlsx
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Param search query string false "Order number, item name or mobile"
// @Param status query string false "Order status or all"
// @Param type query string false "all, retail or wholesale"
// @Success 200 {file} file
// @Router /orders/admin/export [get]
func (s *Server) exportOrders(c *gin.Context) {
	var q adminListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	orders, err := s.orders.ExportOrders(c.Request.Context(), q.query())
	if err != nil {
		fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteOrders(&buf, orders); err != nil {
		fail(c, err)
		return
	}
	name := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// @Summary Update order status by id
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Order id"
// @Param input body statusReq true "New status"
// @Success 200 {object} envelope{data=domain.OrderView}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /orders/admin/{id} [patch]
func (s *Server) adminUpdateOrderStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "order_status is required")
		return
	}
	order, err := s.orders.UpdateOrderStatusByID(c.Request.Context(), c.Param("id"), req.OrderStatus)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order status updated successfully", order)
}

type paymentReq struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// @Summary Update payment status
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Order id"
// @Param input body paymentReq true "New payment status"
// @Success 200 {object} envelope{data=domain.OrderView}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /orders/admin/{id}/payment [patch]
func (s *Server) updatePaymentStatus(c *gin.Context) {
	var req paymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "payment_status is required")
		return
	}
	order, err := s.orders.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), req.PaymentStatus)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Payment status updated successfully", order)
}

// @Summary Delete order
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Order id"
// @Success 200 {object} envelope
// @Failure 404 {object} envelope
// @Router /orders/admin/{id} [delete]
func (s *Server) deleteOrder(c *gin.Context) {
	if err := s.orders.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order deleted successfully", nil)
}
