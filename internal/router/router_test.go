package router_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shelfmate/config"
	"shelfmate/internal/auth"
	"shelfmate/internal/metrics"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"
	"shelfmate/internal/router"
	"shelfmate/internal/service"
	"shelfmate/internal/testutil"
	"shelfmate/internal/ws"
	"shelfmate/pkg/blobstore"
	"shelfmate/pkg/cycle"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

func init() { gin.SetMode(gin.TestMode) }

type api struct {
	t      *testing.T
	cfg    *config.Config
	db     *gorm.DB
	engine *gin.Engine
}

func newAPI(t *testing.T, tweaks ...func(*config.Config)) *api {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	wednesday := time.Date(2026, 10, 14, 10, 0, 0, 0, loc)
	clock := cycle.New(loc).WithNow(func() time.Time { return wednesday })

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		JWT:    config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Hour, Issuer: "shelfmate"},
		Region: config.RegionConfig{Fallback: "none"},
		Photo: config.PhotoConfig{
			MaxBytes: 1 << 20, MaxPerMember: 3, OwnerURLTTL: time.Hour, UnveilURLTTL: 7 * 24 * time.Hour,
		},
		Payment: config.PaymentConfig{WebhookSecret: webhookSecret, RevealPrice: 9900, Currency: "KRW"},
	}
	for _, tweak := range tweaks {
		tweak(cfg)
	}
	db := testutil.NewDB(t)
	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	members := repository.NewMemberRepository(db)
	apps := repository.NewApplicationRepository(db)
	matches := repository.NewMatchRepository(db)
	photos := repository.NewPhotoRepository(db)
	payments := repository.NewPaymentRepository(db)
	notifs := repository.NewNotificationRepository(db)
	regions := repository.NewRegionRepository(db)

	hub := ws.NewHub()
	gate := service.NewRegionGate(apps, regions, nil, clock, cfg.Region.Fallback, m, log)
	notify := service.NewNotificationService(notifs, members, photos, m, log, hub)
	disclose := service.NewDisclosureService(photos, matches, blobstore.NewMemory("originals"), blobstore.NewMemory("blurred"), cfg.Photo, m, log)

	engine := router.Setup(router.Deps{
		Config:        cfg,
		Log:           log,
		Clock:         clock,
		Members:       members,
		Applications:  service.NewApplicationService(apps, gate, clock, log),
		Gate:          gate,
		Matches:       service.NewMatchService(db, members, apps, matches, photos, gate, notify, clock, m, log),
		Disclosure:    disclose,
		Reveal:        service.NewRevealService(db, members, matches, payments, notify, "KRW", m, log),
		Notifications: notify,
		Accounts:      service.NewAccountService(db, members, apps, matches, photos, payments, notifs, disclose, gate, clock, log),
		Hub:           hub,
		Gatherer:      reg,
	})
	return &api{t: t, cfg: cfg, db: db, engine: engine}
}

func (a *api) token(identity string) string {
	a.t.Helper()
	tok, err := auth.GenerateAccessToken(&a.cfg.JWT, identity)
	require.NoError(a.t, err)
	return tok
}

func (a *api) do(method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if raw, ok := body.([]byte); ok {
		buf.Write(raw)
	} else if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *api) as(m *models.Member) string { return a.token(*m.AuthUserID) }

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCycleIsPublic(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/api/v1/cycle", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "2026-10-11", body["cycle"])
	assert.Equal(t, "2026-10-11", body["target_cycle"])
}

func TestAuthentication(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/matches", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/matches", "garbage", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/matches", a.token("nobody"), nil).Code,
		"a valid token without a member is not enough")
}

func TestJoinThenMe(t *testing.T) {
	a := newAPI(t)
	tok := a.token("auth-join")
	profile := map[string]string{
		"nickname": "책벌레", "gender": "female", "region_broad": "서울", "region_fine": "종로구",
		"date_of_birth": "1995-03-02", "favorite_book": "채식주의자", "contact": "kakao:bookworm",
	}
	w := a.do(http.MethodPost, "/api/v1/me", tok, profile)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/v1/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)["member"].(map[string]interface{})
	assert.Equal(t, "책벌레", me["nickname"])
	assert.NotContains(t, me, "contact")

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/v1/me", tok, profile).Code)

	w = a.do(http.MethodPatch, "/api/v1/me", tok, map[string]string{"nickname": " 책읽는밤 "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPatch, "/api/v1/me", tok, map[string]string{"nickname": "  "}).Code)
	w = a.do(http.MethodGet, "/api/v1/me", tok, nil)
	assert.Equal(t, "책읽는밤", decode(t, w)["member"].(map[string]interface{})["nickname"])

	profile["date_of_birth"] = "2015-01-01"
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/v1/me", a.token("auth-minor"), profile).Code)
}

func TestMatchFlowOverHTTP(t *testing.T) {
	a := newAPI(t)
	her := testutil.SeedMember(t, a.db, testutil.MemberOpts{Gender: "female"})
	him := testutil.SeedMember(t, a.db, testutil.MemberOpts{Gender: "male"})

	for _, m := range []*models.Member{her, him} {
		require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/applications", a.as(m), nil).Code)
	}
	w := a.do(http.MethodGet, "/api/v1/regions/status", a.as(her), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["decision"].(map[string]interface{})["open"])

	assert.Equal(t, http.StatusBadRequest,
		a.do(http.MethodPost, "/api/v1/match-requests", a.as(her), map[string]interface{}{"receiver_id": her.ID, "letter": "hi"}).Code)

	w = a.do(http.MethodPost, "/api/v1/match-requests", a.as(her), map[string]interface{}{"receiver_id": him.ID, "letter": "토지 좋아하세요?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := uint(decode(t, w)["match_request"].(map[string]interface{})["id"].(float64))

	assert.Equal(t, http.StatusConflict,
		a.do(http.MethodPost, "/api/v1/match-requests", a.as(her), map[string]interface{}{"receiver_id": him.ID, "letter": "again"}).Code)

	w = a.do(http.MethodGet, "/api/v1/notifications/unread-count", a.as(him), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["unread"])

	accept := fmt.Sprintf("/api/v1/match-requests/%d/accept", id)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, accept, a.as(her), nil).Code)
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, accept, a.as(him), nil).Code)

	unveil := fmt.Sprintf("/api/v1/matches/%d/unveil", id)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodGet, unveil, a.as(her), nil).Code)

	reveal := fmt.Sprintf("/api/v1/matches/%d/free-reveal", id)
	w = a.do(http.MethodPost, reveal, a.as(her), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, false, body["already_unlocked"])
	assert.Equal(t, float64(0), body["remaining_credits"])

	w = a.do(http.MethodPost, reveal, a.as(her), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["already_unlocked"])

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, unveil, a.as(him), nil).Code)

	w = a.do(http.MethodGet, "/api/v1/matches", a.as(him), nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["matches"].([]interface{})
	require.Len(t, list, 1)
	counterpart := list[0].(map[string]interface{})["counterpart"].(map[string]interface{})
	assert.Equal(t, her.Contact, counterpart["contact"])

	w = a.do(http.MethodGet, fmt.Sprintf("/api/v1/match-requests/%d", id), a.as(him), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "accepted", decode(t, w)["match_request"].(map[string]interface{})["status"])

	w = a.do(http.MethodGet, "/api/v1/me/payments", a.as(her), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["payments"].([]interface{}), 1)
}

func TestFreeRevealWithoutCreditIsPaymentRequired(t *testing.T) {
	a := newAPI(t, func(c *config.Config) { c.Payment.ClientConfirm = true })
	her := testutil.SeedMember(t, a.db, testutil.MemberOpts{Gender: "female", FreeReveals: testutil.Int(0)})
	him := testutil.SeedMember(t, a.db, testutil.MemberOpts{Gender: "male"})
	for _, m := range []*models.Member{her, him} {
		require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/applications", a.as(m), nil).Code)
	}
	w := a.do(http.MethodPost, "/api/v1/match-requests", a.as(him), map[string]interface{}{"receiver_id": her.ID, "letter": "안녕하세요"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := uint(decode(t, w)["match_request"].(map[string]interface{})["id"].(float64))
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, fmt.Sprintf("/api/v1/match-requests/%d/accept", id), a.as(her), nil).Code)

	w = a.do(http.MethodPost, fmt.Sprintf("/api/v1/matches/%d/free-reveal", id), a.as(her), nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	// Wrong price never reaches the ledger.
	confirm := fmt.Sprintf("/api/v1/matches/%d/payment-confirm", id)
	assert.Equal(t, http.StatusBadRequest,
		a.do(http.MethodPost, confirm, a.as(her), map[string]interface{}{"transaction_id": "pg_1", "amount": 100}).Code)
	w = a.do(http.MethodPost, confirm, a.as(her), map[string]interface{}{"transaction_id": "pg_1", "amount": 9900})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["already_unlocked"])
}

func TestClientPaymentConfirmDisabledByDefault(t *testing.T) {
	a := newAPI(t)
	her := testutil.SeedMember(t, a.db, testutil.MemberOpts{Gender: "female", FreeReveals: testutil.Int(0)})
	him := testutil.SeedMember(t, a.db, testutil.MemberOpts{Gender: "male"})
	for _, m := range []*models.Member{her, him} {
		require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/applications", a.as(m), nil).Code)
	}
	w := a.do(http.MethodPost, "/api/v1/match-requests", a.as(him), map[string]interface{}{"receiver_id": her.ID, "letter": "안녕하세요"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := uint(decode(t, w)["match_request"].(map[string]interface{})["id"].(float64))
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, fmt.Sprintf("/api/v1/match-requests/%d/accept", id), a.as(her), nil).Code)

	w = a.do(http.MethodPost, fmt.Sprintf("/api/v1/matches/%d/payment-confirm", id), a.as(her),
		map[string]interface{}{"transaction_id": "made_up", "amount": 9900})
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, http.StatusConflict, a.do(http.MethodGet, fmt.Sprintf("/api/v1/matches/%d/unveil", id), a.as(her), nil).Code)
	var count int64
	require.NoError(t, a.db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaymentWebhook(t *testing.T) {
	a := newAPI(t)
	her := testutil.SeedMember(t, a.db, testutil.MemberOpts{Gender: "female"})
	him := testutil.SeedMember(t, a.db, testutil.MemberOpts{Gender: "male"})
	for _, m := range []*models.Member{her, him} {
		require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/applications", a.as(m), nil).Code)
	}
	w := a.do(http.MethodPost, "/api/v1/match-requests", a.as(him), map[string]interface{}{"receiver_id": her.ID, "letter": "안녕하세요"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := uint(decode(t, w)["match_request"].(map[string]interface{})["id"].(float64))
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, fmt.Sprintf("/api/v1/match-requests/%d/accept", id), a.as(her), nil).Code)

	body, err := json.Marshal(map[string]interface{}{
		"transaction_id": "pg_hook_1", "match_id": id, "payer_id": him.ID, "amount": 9900, "status": "completed",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/api/v1/webhooks/payment", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized,
		a.do(http.MethodPost, "/api/v1/webhooks/payment", "", body, "X-Webhook-Signature", sign([]byte("other"))).Code)

	w = a.do(http.MethodPost, "/api/v1/webhooks/payment", "", body, "X-Webhook-Signature", sign(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Provider retries are idempotent.
	w = a.do(http.MethodPost, "/api/v1/webhooks/payment", "", body, "X-Webhook-Signature", sign(body))
	require.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)["result"].(map[string]interface{})
	assert.Equal(t, true, result["already_unlocked"])

	var count int64
	require.NoError(t, a.db.Model(&models.Payment{}).Where("transaction_id = ?", "pg_hook_1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPaymentWebhookRejectsOversizedBody(t *testing.T) {
	a := newAPI(t)
	body, err := json.Marshal(map[string]interface{}{
		"transaction_id": "pg_big", "match_id": 1, "payer_id": 1, "amount": 9900, "status": "completed",
		"memo": strings.Repeat("x", 128<<10),
	})
	require.NoError(t, err)

	w := a.do(http.MethodPost, "/api/v1/webhooks/payment", "", body, "X-Webhook-Signature", sign(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestWithdrawRevokesAccess(t *testing.T) {
	a := newAPI(t)
	m := testutil.SeedMember(t, a.db, testutil.MemberOpts{})
	tok := a.as(m)

	require.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/api/v1/me", tok, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/me", tok, nil).Code)
}

func TestNotFoundAndBadIDs(t *testing.T) {
	a := newAPI(t)
	m := testutil.SeedMember(t, a.db, testutil.MemberOpts{})
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/v1/match-requests/abc/accept", a.as(m), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/api/v1/match-requests/999/accept", a.as(m), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPut, "/api/v1/notifications/999/read", a.as(m), nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodPut, "/api/v1/notifications/read-all", a.as(m), nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
