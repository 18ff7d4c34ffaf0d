package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	contractdomain "github.com/eresearchbill/reckon/internal/contract/domain"
	feedomain "github.com/eresearchbill/reckon/internal/fee/domain"
	"github.com/eresearchbill/reckon/internal/ingestconf"
	"go.uber.org/zap"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := "internal_error"

	switch {
	case errors.Is(err, feedomain.ErrUnauthorized):
		status, kind = http.StatusForbidden, "forbidden"
	case errors.Is(err, contractdomain.ErrLinkage):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, ingestconf.ErrConfiguration), errors.Is(err, errBadRequest):
		status, kind = http.StatusBadRequest, "invalid_request"
	default:
		s.log.Error("request failed", zap.Error(err))
	}

	c.JSON(status, errorResponse{Error: errorPayload{Type: kind, Message: err.Error()}})
}
