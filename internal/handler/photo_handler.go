package handler

import (
	"io"
	"net/http"

	"shelfmate/internal/middleware"
	"shelfmate/internal/service"

	"github.com/gin-gonic/gin"
)

type PhotoHandler struct {
	disclose *service.DisclosureService
	maxBytes int64
}

func NewPhotoHandler(disclose *service.DisclosureService, maxBytes int64) *PhotoHandler {
	return &PhotoHandler{disclose: disclose, maxBytes: maxBytes}
}

// Upload takes a multipart "file" field.
func (h *PhotoHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	// One byte past the limit is enough for the service to reject it.
	raw, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	res, err := h.disclose.Upload(c.Request.Context(), middleware.GetMemberID(c), file.Filename, raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *PhotoHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.disclose.DeletePhoto(c.Request.Context(), middleware.GetMemberID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SignedURL presigns one of the caller's own originals.
func (h *PhotoHandler) SignedURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key required"})
		return
	}
	u, err := h.disclose.SignOwnPhoto(c.Request.Context(), middleware.GetMemberID(c), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Unveil presigns both parties' originals of an unlocked match.
func (h *PhotoHandler) Unveil(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	g, err := h.disclose.GrantAccess(c.Request.Context(), id, middleware.GetMemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}
