package handler

import (
	"couponhub/internal/service"
	"couponhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// SendNotification POST /api/notifications/send
func (h *Handler) SendNotification(c *gin.Context) {
	var req service.SendRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.notifications.Send(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// GetNotificationPreferences GET /api/notifications/preferences
func (h *Handler) GetNotificationPreferences(c *gin.Context) {
	pref, err := h.notifications.GetPreferences(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, pref)
}

// UpdateNotificationPreferences PUT /api/notifications/preferences
func (h *Handler) UpdateNotificationPreferences(c *gin.Context) {
	var req service.PreferencesRequest
	if !bindJSON(c, &req) {
		return
	}

	pref, err := h.notifications.UpdatePreferences(c.Request.Context(), identity(c).UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, pref)
}
