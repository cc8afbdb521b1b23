package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	activitydomain "github.com/smallbiznis/carepoints/internal/activity/domain"
)

func (s *Server) RecordActivity(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req activitydomain.RecordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserID = userID

	resp, err := s.activitySvc.RecordActivity(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListUserActivities(c *gin.Context) {
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

	resp, err := s.activitySvc.ListUserActivities(c.Request.Context(), userID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Records, "page_info": resp.PageInfo})
}

type verifyActivityRecordRequest struct {
	Status string `json:"status"`
}

func (s *Server) VerifyActivityRecord(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req verifyActivityRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.activitySvc.VerifyRecord(c.Request.Context(), id, activitydomain.VerificationStatus(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) ListUserAchievements(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.achievementSvc.ListUserAchievements(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
