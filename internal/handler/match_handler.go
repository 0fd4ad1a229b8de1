package handler

import (
	"net/http"

	"shelfmate/internal/domain"
	"shelfmate/internal/middleware"
	"shelfmate/internal/service"

	"github.com/gin-gonic/gin"
)

type MatchHandler struct {
	matches *service.MatchService
}

func NewMatchHandler(matches *service.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

func (h *MatchHandler) Submit(c *gin.Context) {
	var req struct {
		ReceiverID uint   `json:"receiver_id" binding:"required"`
		Letter     string `json:"letter"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver_id required"})
		return
	}
	m, err := h.matches.Submit(c.Request.Context(), middleware.GetMemberID(c), req.ReceiverID, req.Letter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"match_request": m})
}

func (h *MatchHandler) Accept(c *gin.Context) { h.respond(c, domain.DecisionAccept) }

func (h *MatchHandler) Reject(c *gin.Context) { h.respond(c, domain.DecisionReject) }

func (h *MatchHandler) respond(c *gin.Context, decision string) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	m, err := h.matches.Respond(c.Request.Context(), id, middleware.GetMemberID(c), decision)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match_request": m})
}

func (h *MatchHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	m, err := h.matches.Cancel(c.Request.Context(), id, middleware.GetMemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match_request": m})
}

// Get returns a request to either of its parties.
func (h *MatchHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	m, err := h.matches.Get(c.Request.Context(), id, middleware.GetMemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match_request": m})
}

func (h *MatchHandler) Incoming(c *gin.Context) {
	limit, offset := paging(c)
	list, err := h.matches.ListIncoming(c.Request.Context(), middleware.GetMemberID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": list})
}

func (h *MatchHandler) Outgoing(c *gin.Context) {
	limit, offset := paging(c)
	list, err := h.matches.ListOutgoing(c.Request.Context(), middleware.GetMemberID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": list})
}

// List returns accepted matches with the counterpart's profile.
func (h *MatchHandler) List(c *gin.Context) {
	limit, offset := paging(c)
	list, err := h.matches.ListMatches(c.Request.Context(), middleware.GetMemberID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": list})
}
