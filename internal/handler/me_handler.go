package handler

import (
	"net/http"
	"time"

	"shelfmate/internal/middleware"
	"shelfmate/internal/repository"
	"shelfmate/internal/service"

	"github.com/gin-gonic/gin"
)

type MeHandler struct {
	accounts *service.AccountService
}

func NewMeHandler(accounts *service.AccountService) *MeHandler {
	return &MeHandler{accounts: accounts}
}

// Join creates the member for the token's identity. It runs behind
// Authenticate only, since the member does not exist yet.
func (h *MeHandler) Join(c *gin.Context) {
	var req struct {
		service.ProfileInput
		DateOfBirth string `json:"date_of_birth" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile"})
		return
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_of_birth must be YYYY-MM-DD"})
		return
	}
	in := req.ProfileInput
	in.DateOfBirth = &dob
	m, err := h.accounts.Join(c.Request.Context(), middleware.GetAuthUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": m})
}

func (h *MeHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"member": middleware.GetMember(c)})
}

// RegisterFCMToken saves the FCM token for push notifications.
func (h *MeHandler) RegisterFCMToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}
	if err := h.accounts.SetFCMToken(c.Request.Context(), middleware.GetMemberID(c), req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UpdateProfile edits nickname, bio, favourite book and contact. Omitted
// fields stay as they are.
func (h *MeHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Nickname       *string `json:"nickname"`
		Bio            *string `json:"bio"`
		FavoriteBook   *string `json:"favorite_book"`
		FavoriteAuthor *string `json:"favorite_author"`
		Contact        *string `json:"contact"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile"})
		return
	}
	err := h.accounts.UpdateProfile(c.Request.Context(), middleware.GetMemberID(c), repository.ProfileFields{
		Nickname:       req.Nickname,
		Bio:            req.Bio,
		FavoriteBook:   req.FavoriteBook,
		FavoriteAuthor: req.FavoriteAuthor,
		Contact:        req.Contact,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *MeHandler) Withdraw(c *gin.Context) {
	if err := h.accounts.Withdraw(c.Request.Context(), middleware.GetMemberID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
}
