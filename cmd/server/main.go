package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"shelfmate/config"
	"shelfmate/internal/cache"
	"shelfmate/internal/database"
	"shelfmate/internal/logger"
	"shelfmate/internal/metrics"
	"shelfmate/internal/middleware"
	"shelfmate/internal/repository"
	"shelfmate/internal/router"
	"shelfmate/internal/service"
	"shelfmate/internal/ws"
	"shelfmate/pkg/blobstore"
	"shelfmate/pkg/cycle"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	clock, err := cycle.NewFromName(cfg.Cycle.Timezone)
	if err != nil {
		return err
	}

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Redis is an optimization; without it every check goes to the store.
	var regionCache service.RegionCache
	rc := cache.NewRedisCache(&cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, region cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = rc.Close()
	} else {
		regionCache = rc
		defer rc.Close()
	}
	cancel()

	private, public, err := blobStores(ctx, cfg)
	if err != nil {
		return err
	}

	members := repository.NewMemberRepository(db)
	apps := repository.NewApplicationRepository(db)
	matches := repository.NewMatchRepository(db)
	photos := repository.NewPhotoRepository(db)
	payments := repository.NewPaymentRepository(db)
	notifs := repository.NewNotificationRepository(db)
	regions := repository.NewRegionRepository(db)

	hub := ws.NewHub()
	pushers := []service.Pusher{hub}
	if fcm := service.NewFCMService(ctx, cfg.Firebase.ServiceAccountPath, log); fcm != nil {
		pushers = append(pushers, fcm)
	}

	gate := service.NewRegionGate(apps, regions, regionCache, clock, cfg.Region.Fallback, m, log)
	log.Info("region gate configured", zap.String("fallback", gate.Fallback()))

	notify := service.NewNotificationService(notifs, members, photos, m, log, pushers...)
	disclose := service.NewDisclosureService(photos, matches, private, public, cfg.Photo, m, log)
	reveal := service.NewRevealService(db, members, matches, payments, notify, cfg.Payment.Currency, m, log)

	limiter := middleware.NewInMemoryRateLimiter(30, time.Minute)
	go limiter.Run(ctx, 5*time.Minute)

	engine := router.Setup(router.Deps{
		Config:        cfg,
		Log:           log,
		Clock:         clock,
		Members:       members,
		Applications:  service.NewApplicationService(apps, gate, clock, log),
		Gate:          gate,
		Matches:       service.NewMatchService(db, members, apps, matches, photos, gate, notify, clock, m, log),
		Disclosure:    disclose,
		Reveal:        reveal,
		Notifications: notify,
		Accounts:      service.NewAccountService(db, members, apps, matches, photos, payments, notifs, disclose, gate, clock, log),
		Hub:           hub,
		Gatherer:      reg,
		WriteLimiter:  limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("timezone", cfg.Cycle.Timezone))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// blobStores builds the private originals bucket and the public obscured
// bucket. The public side is Cloudinary unless PUBLIC_PHOTO_BACKEND=s3.
func blobStores(ctx context.Context, cfg *config.Config) (blobstore.Private, blobstore.Public, error) {
	s3c, err := blobstore.NewS3Client(ctx, blobstore.S3Config{
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	})
	if err != nil {
		return nil, nil, err
	}
	private := blobstore.NewS3Bucket(s3c, cfg.Storage.PrivateBucket, cfg.Storage.Region, "")
	if cfg.Storage.PublicBackend == "s3" {
		return private, blobstore.NewS3Bucket(s3c, cfg.Storage.PublicBucket, cfg.Storage.Region, cfg.Storage.PublicBaseURL), nil
	}
	public, err := blobstore.NewCloudinary(blobstore.CloudinaryConfig{
		CloudName: cfg.Cloudinary.CloudName,
		APIKey:    cfg.Cloudinary.APIKey,
		APISecret: cfg.Cloudinary.APISecret,
		Folder:    cfg.Cloudinary.Folder,
	})
	if err != nil {
		return nil, nil, err
	}
	return private, public, nil
}
