package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	commonerrors "github.com/northwear/storefront/common/errors"
)

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.catalog.ListProducts(c.Request.Context())
	if err != nil {
		commonerrors.Respond(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (s *Server) getProduct(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid product id"})
		return
	}
	product, err := s.catalog.GetProduct(c.Request.Context(), uint(id))
	if err != nil {
		commonerrors.Respond(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}
