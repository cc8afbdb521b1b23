package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
)

// GetPoints returns the caller's account, creating an empty one on first access.
func (s *Server) GetPoints(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	account, err := s.pointsSvc.GetAccount(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) ListPointsHistory(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	page, err := parsePage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.pointsSvc.ListHistory(c.Request.Context(), userID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Transactions, "page_info": resp.PageInfo})
}

func (s *Server) GetUserPoints(c *gin.Context) {
	userID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	account, err := s.pointsSvc.GetAccount(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) AdjustPoints(c *gin.Context) {
	var req pointsdomain.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pointsSvc.Adjust(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
