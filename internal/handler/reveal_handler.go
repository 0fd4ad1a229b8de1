package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"shelfmate/config"
	"shelfmate/internal/domain"
	"shelfmate/internal/middleware"
	"shelfmate/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

type RevealHandler struct {
	reveal *service.RevealService
	cfg    *config.PaymentConfig
	log    *zap.Logger
}

func NewRevealHandler(reveal *service.RevealService, cfg *config.PaymentConfig, log *zap.Logger) *RevealHandler {
	return &RevealHandler{reveal: reveal, cfg: cfg, log: log}
}

// FreeReveal spends one free credit. An already unlocked match answers 200
// with already_unlocked and the untouched balance.
func (h *RevealHandler) FreeReveal(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	res, err := h.reveal.UnlockWithFreeCredit(c.Request.Context(), id, middleware.GetMemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ConfirmPayment is the client-side confirmation after checkout. It is
// refused unless PaymentConfig.ClientConfirm is set, since nothing here
// checks the transaction with the provider.
func (h *RevealHandler) ConfirmPayment(c *gin.Context) {
	if !h.cfg.ClientConfirm {
		c.JSON(http.StatusForbidden, gin.H{"error": "client payment confirmation is disabled"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		TransactionID string `json:"transaction_id" binding:"required"`
		Amount        int64  `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id and amount required"})
		return
	}
	if req.Amount != h.cfg.RevealPrice {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount does not match the reveal price"})
		return
	}
	res, err := h.reveal.UnlockWithPayment(c.Request.Context(), id, middleware.GetMemberID(c), strings.TrimSpace(req.TransactionID), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type webhookPayload struct {
	TransactionID string `json:"transaction_id"`
	MatchID       uint   `json:"match_id"`
	PayerID       uint   `json:"payer_id"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
}

// Webhook handles the provider callback. Only completed payments unlock;
// everything else is acknowledged so the provider stops retrying.
func (h *RevealHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !h.verifySignature(body, c.GetHeader("X-Webhook-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if p.TransactionID == "" || p.MatchID == 0 || p.PayerID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id, match_id and payer_id required"})
		return
	}
	if !strings.EqualFold(p.Status, domain.PaymentStatusCompleted) {
		h.log.Info("payment webhook ignored", zap.String("tx_ref", p.TransactionID), zap.String("status", p.Status))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	res, err := h.reveal.UnlockWithPayment(c.Request.Context(), p.MatchID, p.PayerID, p.TransactionID, p.Amount)
	if err != nil {
		h.log.Warn("payment webhook rejected",
			zap.String("tx_ref", p.TransactionID),
			zap.Uint("match_id", p.MatchID),
			zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "result": res})
}

// verifySignature checks a hex HMAC-SHA256 of the raw body. With no secret
// configured every callback is refused.
func (h *RevealHandler) verifySignature(body []byte, signature string) bool {
	if h.cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

// History lists the caller's payments, free reveals included.
func (h *RevealHandler) History(c *gin.Context) {
	limit, offset := paging(c)
	list, err := h.reveal.History(c.Request.Context(), middleware.GetMemberID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list})
}
