package router

import (
	"net/http"

	"shelfmate/config"
	"shelfmate/internal/handler"
	"shelfmate/internal/logger"
	"shelfmate/internal/middleware"
	"shelfmate/internal/repository"
	"shelfmate/internal/service"
	"shelfmate/internal/ws"
	"shelfmate/pkg/cycle"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the HTTP layer needs, built once in main.
type Deps struct {
	Config        *config.Config
	Log           *zap.Logger
	Clock         *cycle.Clock
	Members       *repository.MemberRepository
	Applications  *service.ApplicationService
	Gate          *service.RegionGate
	Matches       *service.MatchService
	Disclosure    *service.DisclosureService
	Reveal        *service.RevealService
	Notifications *service.NotificationService
	Accounts      *service.AccountService
	Hub           *ws.Hub
	Gatherer      prometheus.Gatherer
	WriteLimiter  *middleware.InMemoryRateLimiter
}

func Setup(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Gin(d.Log))

	cycleHandler := handler.NewCycleHandler(d.Clock)
	applicationHandler := handler.NewApplicationHandler(d.Applications, d.Gate)
	matchHandler := handler.NewMatchHandler(d.Matches)
	photoHandler := handler.NewPhotoHandler(d.Disclosure, cfg.Photo.MaxBytes)
	revealHandler := handler.NewRevealHandler(d.Reveal, &cfg.Payment, d.Log)
	notificationHandler := handler.NewNotificationHandler(d.Notifications)
	meHandler := handler.NewMeHandler(d.Accounts)

	authMw := middleware.Authenticate(&cfg.JWT)
	memberMw := middleware.MemberRequired(d.Members)
	var writes gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.WriteLimiter != nil {
		writes = middleware.RateLimit(d.WriteLimiter)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	{
		api.GET("/cycle", cycleHandler.Status)
		api.POST("/webhooks/payment", revealHandler.Webhook)

		// Joining needs a valid identity but no member yet.
		api.POST("/me", authMw, meHandler.Join)

		m := api.Group("")
		m.Use(authMw, memberMw)
		{
			m.GET("/me", meHandler.Get)
			m.PATCH("/me", meHandler.UpdateProfile)
			m.POST("/me/fcm-token", meHandler.RegisterFCMToken)
			m.DELETE("/me", meHandler.Withdraw)
			m.GET("/me/payments", revealHandler.History)

			m.POST("/applications", applicationHandler.Apply)
			m.GET("/applications/current", applicationHandler.Current)
			m.GET("/regions/status", applicationHandler.RegionStatus)

			m.POST("/match-requests", writes, matchHandler.Submit)
			m.POST("/match-requests/:id/accept", matchHandler.Accept)
			m.POST("/match-requests/:id/reject", matchHandler.Reject)
			m.POST("/match-requests/:id/cancel", matchHandler.Cancel)
			m.GET("/match-requests/incoming", matchHandler.Incoming)
			m.GET("/match-requests/outgoing", matchHandler.Outgoing)
			m.GET("/match-requests/:id", matchHandler.Get)

			m.GET("/matches", matchHandler.List)
			m.GET("/matches/:id/unveil", photoHandler.Unveil)
			m.POST("/matches/:id/free-reveal", revealHandler.FreeReveal)
			m.POST("/matches/:id/payment-confirm", revealHandler.ConfirmPayment)

			m.POST("/photos", writes, photoHandler.Upload)
			m.DELETE("/photos/:id", photoHandler.Delete)
			m.GET("/photos/signed-url", photoHandler.SignedURL)

			m.GET("/notifications", notificationHandler.List)
			m.GET("/notifications/unread-count", notificationHandler.UnreadCount)
			m.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
			m.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		}
	}

	if d.Hub != nil {
		r.GET("/ws/notifications", ws.UpgradeNotificationsWS(&cfg.JWT, d.Hub, d.Members, d.Log))
	}
	return r
}
