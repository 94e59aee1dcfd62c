// Package apiapp wires configuration, storage, services and HTTP transport
// into the runnable checkout API.
package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rsharma/courselane/internal/config"
	"github.com/rsharma/courselane/internal/infra/razorpay"
	"github.com/rsharma/courselane/internal/infra/s3"
	pgrepo "github.com/rsharma/courselane/internal/repo/postgres"
	redrepo "github.com/rsharma/courselane/internal/repo/redis"
	"github.com/rsharma/courselane/internal/services/auth"
	"github.com/rsharma/courselane/internal/services/checkout"
	"github.com/rsharma/courselane/internal/services/courses"
	"github.com/rsharma/courselane/internal/services/media"
	"github.com/rsharma/courselane/internal/transport/http/handlers"
)

type App struct {
	cfg    config.Config
	log    *zap.Logger
	router chi.Router

	pgPool      *pgxpool.Pool
	redisClient *goredis.Client
}

// New builds the full dependency graph. Unreachable backends degrade instead
// of aborting startup: the affected endpoints fail per-request while health
// stays up, which keeps rollouts debuggable.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	app := &App{cfg: cfg, log: log}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("postgres unavailable, starting degraded", zap.Error(err))
	} else if err := pool.Ping(ctx); err != nil {
		log.Error("postgres ping failed, starting degraded", zap.Error(err))
		pool.Close()
		pool = nil
	}
	app.pgPool = pool

	app.redisClient = redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := app.redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, webhook dedupe degraded", zap.Error(err))
	}

	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	courseRepo := pgrepo.NewCourseRepo(pool)
	enrollmentRepo := pgrepo.NewEnrollmentRepo(pool)
	deadLetterRepo := pgrepo.NewWebhookEventRepo(pool)
	dedupeRepo := redrepo.NewWebhookDedupeRepo(app.redisClient)

	var gateway checkout.Gateway
	if rzp, err := razorpay.NewClient(razorpay.Config{
		KeyID:        cfg.Razorpay.KeyID,
		KeySecret:    cfg.Razorpay.KeySecret,
		OrderTimeout: cfg.Razorpay.OrderTimeout,
	}); err != nil {
		log.Error("razorpay client unavailable, checkout degraded", zap.Error(err))
	} else {
		gateway = rzp
	}

	var thumbnails *media.Storage
	if s3Client, err := s3.NewClient(s3.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 unavailable, thumbnails degraded", zap.Error(err))
	} else {
		thumbnails = media.NewStorage(s3Client, cfg.S3.Bucket, cfg.Checkout.ThumbnailTTL)
		if err := thumbnails.EnsureBucket(ctx); err != nil {
			log.Warn("s3 bucket check failed, thumbnails degraded", zap.Error(err))
		}
	}

	checkoutSvc := checkout.NewService(checkout.Dependencies{
		Gateway:     gateway,
		Purchases:   purchaseRepo,
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Deduper:     dedupeRepo,
		DeadLetters: deadLetterRepo,
		Logger:      log.Named("checkout"),
	}, checkout.Config{
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
		Currency:      cfg.Checkout.Currency,
		ReceiptPrefix: cfg.Checkout.ReceiptPrefix,
		EventDedupTTL: cfg.Checkout.EventDedupTTL,
	})

	var presigner courses.Presigner
	if thumbnails != nil {
		presigner = thumbnails
	}
	coursesSvc := courses.NewService(courses.Dependencies{
		Courses:     courseRepo,
		Purchases:   purchaseRepo,
		Enrollments: enrollmentRepo,
		Presigner:   presigner,
		Logger:      log.Named("courses"),
	})

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)

	app.router = newRouter(routerDeps{
		logger:     log,
		jwtManager: jwtManager,
		checkout:   handlers.NewCheckoutHandler(checkoutSvc, log.Named("http")),
		courses:    handlers.NewCourseHandler(coursesSvc, log.Named("http")),
		admin:      handlers.NewAdminHandler(deadLetterRepo, log.Named("http")),
		health:     handlers.NewHealthHandler(),
	})

	return app, nil
}

func (a *App) Router() http.Handler {
	return a.router
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      a.router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", zap.String("addr", a.cfg.HTTP.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.WriteTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	}
}

func (a *App) Close() {
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("close redis client", zap.Error(err))
		}
	}
}
