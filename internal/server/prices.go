package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) listPrices(c *gin.Context) {
	productNo := strings.TrimSpace(c.Query("product"))

	prices, err := s.catalog.ListPrices(c.Request.Context(), productNo)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}
