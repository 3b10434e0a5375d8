package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	commonerrors "github.com/northwear/storefront/common/errors"
	"github.com/northwear/storefront/internal/orders"
)

type createOrderRequest struct {
	DeliveryType  string `json:"deliveryType" binding:"required"`
	FullName      string `json:"fullName" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Phone         string `json:"phone" binding:"required"`
	City          string `json:"city"`
	Address       string `json:"address"`
	Comment       string `json:"comment"`
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "wrong data"})
		return
	}

	order, err := s.orders.CreateOrder(c.Request.Context(), sessionID(c), orders.CreateOrderInput{
		DeliveryType:  req.DeliveryType,
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		City:          req.City,
		Address:       req.Address,
		Comment:       req.Comment,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		commonerrors.Respond(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId": order.ID,
		"message": "order created successfully",
	})
}

func (s *Server) listOrders(c *gin.Context) {
	list, err := s.orders.ListOrders(c.Request.Context(), sessionID(c))
	if err != nil {
		commonerrors.Respond(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}
