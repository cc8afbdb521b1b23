package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	redemptiondomain "github.com/smallbiznis/carepoints/internal/redemption/domain"
)

func (s *Server) RedeemReward(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req redemptiondomain.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserID = userID

	item, err := s.redemptionSvc.RedeemReward(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) ListUserRewards(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.redemptionSvc.ListUserRewards(c.Request.Context(), userID, strings.TrimSpace(c.Query("status")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) FulfillRedemption(c *gin.Context) {
	item, err := s.redemptionSvc.FulfillByCode(c.Request.Context(), strings.TrimSpace(c.Param("code")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}
