package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/eresearchbill/reckon/internal/daterange"
	feedomain "github.com/eresearchbill/reckon/internal/fee/domain"
)

var errBadRequest = errors.New("invalid request")

// feeQuery reads the caller identity and billing window every endpoint
// takes: email, start and end as YYYYMMDD in the configured timezone.
func (s *Server) feeQuery(c *gin.Context) (feedomain.Query, error) {
	var q feedomain.Query

	q.Email = strings.TrimSpace(c.Query("email"))
	if q.Email == "" {
		return q, fmt.Errorf("%w: email is required", errBadRequest)
	}

	start := strings.TrimSpace(c.Query("start"))
	end := strings.TrimSpace(c.Query("end"))
	if start == "" || end == "" {
		return q, fmt.Errorf("%w: start and end are required", errBadRequest)
	}

	var err error
	q.Start, q.End, err = daterange.Range(start, end, s.cfg.Timezone)
	if err != nil {
		return q, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return q, nil
}
