package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	overviewdomain "github.com/smallbiznis/invoiceledger/internal/invoiceoverview/domain"
)

func (s *Server) GetStatistics(c *gin.Context) {
	var req overviewdomain.StatisticsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.overviewSvc.Statistics(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}
