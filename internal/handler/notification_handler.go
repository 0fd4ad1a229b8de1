package handler

import (
	"net/http"

	"shelfmate/internal/middleware"
	"shelfmate/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notify *service.NotificationService
}

func NewNotificationHandler(notify *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notify: notify}
}

func (h *NotificationHandler) List(c *gin.Context) {
	limit, offset := paging(c)
	unreadOnly := c.Query("unread") == "true"
	list, err := h.notify.List(c.Request.Context(), middleware.GetMemberID(c), unreadOnly, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.notify.UnreadCount(c.Request.Context(), middleware.GetMemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.notify.MarkRead(c.Request.Context(), id, middleware.GetMemberID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notify.MarkAllRead(c.Request.Context(), middleware.GetMemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "updated": n})
}
