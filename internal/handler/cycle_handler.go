package handler

import (
	"net/http"

	"shelfmate/pkg/cycle"

	"github.com/gin-gonic/gin"
)

type CycleHandler struct {
	clock *cycle.Clock
}

func NewCycleHandler(clock *cycle.Clock) *CycleHandler {
	return &CycleHandler{clock: clock}
}

// Status reports the phase, cycle keys and application window at now.
func (h *CycleHandler) Status(c *gin.Context) {
	s := h.clock.Status(h.clock.Now())
	c.JSON(http.StatusOK, gin.H{
		"status":       s,
		"cycle":        cycle.Key(s.CycleStart),
		"target_cycle": cycle.Key(s.TargetCycleStart),
	})
}
