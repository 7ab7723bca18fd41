package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
)

// Product handlers
type productReq struct {
	Name             string         `json:"name" binding:"required"`
	Images           []domain.Image `json:"images"`
	Price            float64        `json:"price" binding:"gte=0"`
	Stock            int64          `json:"stock" binding:"gte=0"`
	WholesaleEnabled bool           `json:"wholesale_enabled"`
	WholesalePrice   float64        `json:"wholesale_price" binding:"gte=0"`
	MOQ              int64          `json:"moq" binding:"gte=0"`
}

func (r productReq) product() domain.Product {
	return domain.Product{
		Name:             r.Name,
		Images:           r.Images,
		Price:            r.Price,
		Stock:            r.Stock,
		WholesaleEnabled: r.WholesaleEnabled,
		WholesalePrice:   r.WholesalePrice,
		MOQ:              r.MOQ,
	}
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body productReq true "Product"
// @Success 201 {object} envelope{data=domain.Product}
// @Failure 400 {object} envelope
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid product payload")
		return
	}
	p, err := s.products.Create(c.Request.Context(), req.product())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Product created successfully", p)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} envelope{data=domain.Product}
// @Failure 404 {object} envelope
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	p, err := s.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product fetched successfully", p)
}

// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Product ID"
// @Param input body productReq true "Product"
// @Success 200 {object} envelope{data=domain.Product}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid product payload")
		return
	}
	p := req.product()
	p.ID = c.Param("id")
	updated, err := s.products.Update(c.Request.Context(), p)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product updated successfully", updated)
}

// @Summary Delete product
// @Tags products
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Product ID"
// @Success 200 {object} envelope
// @Failure 404 {object} envelope
// @Router /products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	if err := s.products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product deleted successfully", nil)
}

type productListQuery struct {
	Name     string   `form:"name"`
	MinPrice *float64 `form:"min_price" binding:"omitempty,gte=0"`
	MaxPrice *float64 `form:"max_price" binding:"omitempty,gte=0"`
}

// @Summary List products
// @Tags products
// @Produce json
// @Param name query string false "Name contains"
// @Param min_price query number false "Min price"
// @Param max_price query number false "Max price"
// @Success 200 {object} envelope{data=[]domain.Product}
// @Failure 400 {object} envelope
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	var q productListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid price filter")
		return
	}
	items, err := s.products.List(c.Request.Context(), repository.ProductFilter{
		NameSubstring: q.Name,
		MinPrice:      q.MinPrice,
		MaxPrice:      q.MaxPrice,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Products fetched successfully", items)
}

// Cart handlers
type cartReq struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
}

// @Summary Add product to cart
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body cartReq true "Cart line"
// @Success 201 {object} envelope{data=domain.CartLine}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /cart [post]
func (s *Server) addToCart(c *gin.Context) {
	var req cartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "product_id and a positive quantity are required")
		return
	}
	line, err := s.carts.AddItem(c.Request.Context(), currentUser(c), req.ProductID, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Item added to cart", line)
}

// @Summary List cart
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.CartLine}
// @Router /cart [get]
func (s *Server) listCart(c *gin.Context) {
	lines, err := s.carts.List(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Cart fetched successfully", lines)
}

// @Summary Remove cart line
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cart line id"
// @Success 200 {object} envelope
// @Failure 404 {object} envelope
// @Router /cart/{id} [delete]
func (s *Server) removeFromCart(c *gin.Context) {
	if err := s.carts.RemoveItem(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Item removed from cart", nil)
}

// Address handlers
type addressReq struct {
	AddressLine string `json:"address_line" binding:"required"`
	City        string `json:"city"`
	State       string `json:"state"`
	Pincode     string `json:"pincode" binding:"omitempty,numeric"`
	Country     string `json:"country"`
	Mobile      string `json:"mobile" binding:"required,phone"`
}

// @Summary Add delivery address
// @Tags addresses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body addressReq true "Address"
// @Success 201 {object} envelope{data=domain.Address}
// @Failure 400 {object} envelope
// @Router /addresses [post]
func (s *Server) createAddress(c *gin.Context) {
	var req addressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "address_line and a valid mobile are required")
		return
	}
	a, err := s.addresses.Create(c.Request.Context(), domain.Address{
		UserID:  currentUser(c),
		Line:    req.AddressLine,
		City:    req.City,
		State:   req.State,
		Pincode: req.Pincode,
		Country: req.Country,
		Mobile:  req.Mobile,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Address saved successfully", a)
}

// @Summary List my addresses
// @Tags addresses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.Address}
// @Router /addresses [get]
func (s *Server) listAddresses(c *gin.Context) {
	list, err := s.addresses.List(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Addresses fetched successfully", list)
}
