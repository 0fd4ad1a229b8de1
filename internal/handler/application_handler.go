package handler

import (
	"net/http"

	"shelfmate/internal/middleware"
	"shelfmate/internal/models"
	"shelfmate/internal/service"

	"github.com/gin-gonic/gin"
)

type ApplicationHandler struct {
	apps *service.ApplicationService
	gate *service.RegionGate
}

func NewApplicationHandler(apps *service.ApplicationService, gate *service.RegionGate) *ApplicationHandler {
	return &ApplicationHandler{apps: apps, gate: gate}
}

func (h *ApplicationHandler) Apply(c *gin.Context) {
	app, err := h.apps.Apply(c.Request.Context(), middleware.GetMember(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"application": app})
}

// Current returns both the application for the live matching cycle and the
// one a submission right now would land in. Either may be null.
func (h *ApplicationHandler) Current(c *gin.Context) {
	memberID := middleware.GetMemberID(c)
	current, err := h.apps.Current(c.Request.Context(), memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	upcoming, err := h.apps.Upcoming(c.Request.Context(), memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": current, "upcoming": upcoming})
}

// RegionStatus answers for ?broad=&fine=, defaulting to the caller's region.
func (h *ApplicationHandler) RegionStatus(c *gin.Context) {
	region := models.Region{Broad: c.Query("broad"), Fine: c.Query("fine")}
	if region.Broad == "" {
		region = middleware.GetMember(c).Region()
	}
	c.JSON(http.StatusOK, gin.H{
		"decision": h.gate.Check(c.Request.Context(), region),
		"fallback": h.gate.Fallback(),
	})
}
