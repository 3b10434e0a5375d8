package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	commonerrors "github.com/northwear/storefront/common/errors"
)

type cartLineRequest struct {
	ProductID uint   `json:"productId" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

func (s *Server) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, s.carts.GetCart(sessionID(c)))
}

func (s *Server) addToCart(c *gin.Context) {
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "wrong data"})
		return
	}

	product, err := s.carts.AddLine(c.Request.Context(), sessionID(c), req.ProductID, req.Size, req.Quantity)
	if err != nil {
		commonerrors.Respond(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "product has been added to cart",
		"product": product,
	})
}

func (s *Server) removeFromCart(c *gin.Context) {
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "wrong data"})
		return
	}

	if err := s.carts.RemoveLine(c.Request.Context(), sessionID(c), req.ProductID, req.Size, req.Quantity); err != nil {
		commonerrors.Respond(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "product has been removed from cart"})
}

func (s *Server) clearCart(c *gin.Context) {
	s.carts.Clear(c.Request.Context(), sessionID(c))
	c.JSON(http.StatusOK, gin.H{"message": "the cart has been cleared"})
}
