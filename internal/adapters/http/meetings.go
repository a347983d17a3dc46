package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type meetingHandlers struct {
	orch *orch.Orchestrator
}

type createRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
	Host        string `json:"host"`
}

type leaveRequest struct {
	MemberID string `json:"memberId" binding:"required"`
}

// statusOf maps registry errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrUsernameEmpty),
		errors.Is(err, domain.ErrUsernameTooLong):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRoomEnded):
		return http.StatusGone
	case errors.Is(err, domain.ErrRoomFull),
		errors.Is(err, domain.ErrNotInRoom),
		errors.Is(err, domain.ErrAlreadyJoined):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotHost):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func userOf(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString(clientTokenKey))
}

func (h *meetingHandlers) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "displayName is required"})
		return
	}
	host := domain.UserID(req.Host)
	if host == "" {
		host = userOf(c)
	}
	info, err := h.orch.CreateMeeting(host, req.DisplayName)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":        info.Code,
		"displayCode": info.DisplayCode,
		"meetingId":   info.MeetingID,
	})
}

func (h *meetingHandlers) get(c *gin.Context) {
	info, err := h.orch.Meeting(c.Param("code"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *meetingHandlers) members(c *gin.Context) {
	members, err := h.orch.Members(c.Param("code"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *meetingHandlers) join(c *gin.Context) {
	info, err := h.orch.Admit(c.Param("code"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meetingId":        info.MeetingID,
		"code":             info.Code,
		"hostName":         info.HostName,
		"participantCount": info.ParticipantCount,
	})
}

func (h *meetingHandlers) leave(c *gin.Context) {
	var req leaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "memberId is required"})
		return
	}
	if err := h.orch.LeaveMember(c.Param("code"), domain.MemberID(req.MemberID)); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *meetingHandlers) end(c *gin.Context) {
	if err := h.orch.EndMeeting(c.Param("code"), userOf(c)); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *meetingHandlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC()})
}

func (h *meetingHandlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Stats())
}
