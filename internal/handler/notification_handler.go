package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarfund-api/internal/service"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
	"github.com/noah-isme/scholarfund-api/pkg/response"
)

// NotificationHandler exposes in-app notification endpoints.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List returns a recipient's notifications with the unread count.
func (h *NotificationHandler) List(c *gin.Context) {
	notifications, unread, err := h.notifications.ListForRecipient(c.Request.Context(), c.Query("recipient"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"notifications": notifications, "unread": unread}, nil)
}

// MarkViewed flips the viewed flag on one notification.
func (h *NotificationHandler) MarkViewed(c *gin.Context) {
	var req struct {
		Recipient string `json:"recipient"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.notifications.MarkViewed(c.Request.Context(), c.Param("id"), req.Recipient); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
