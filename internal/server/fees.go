package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) listFees(c *gin.Context) {
	q, err := s.feeQuery(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	q.ProductNo = strings.TrimSpace(c.Query("product"))

	records, err := s.fees.List(c.Request.Context(), q)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fees": records})
}

func (s *Server) summarizeFees(c *gin.Context) {
	q, err := s.feeQuery(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	q.ProductNo = strings.TrimSpace(c.Query("product"))

	sums, err := s.fees.Summarize(c.Request.Context(), q)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sums})
}

func (s *Server) listProductFees(c *gin.Context) {
	q, err := s.feeQuery(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	q.ProductNo = c.Param("no")

	records, err := s.fees.List(c.Request.Context(), q)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fees": records})
}

func (s *Server) listProductUsage(c *gin.Context) {
	q, err := s.feeQuery(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	q.ProductNo = c.Param("no")

	kind := strings.TrimSpace(c.Query("kind"))
	if kind == "" {
		s.respondError(c, fmt.Errorf("%w: kind is required", errBadRequest))
		return
	}

	rows, err := s.fees.ListUsage(c.Request.Context(), q, kind)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": rows})
}
