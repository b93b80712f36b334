package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cms-backend/internal/auth"
	"cms-backend/internal/cache"
	"cms-backend/internal/categories"
	"cms-backend/internal/config"
	"cms-backend/internal/dashboard"
	"cms-backend/internal/db"
	"cms-backend/internal/engagement"
	"cms-backend/internal/faqs"
	"cms-backend/internal/inquiries"
	"cms-backend/internal/media"
	"cms-backend/internal/notifications"
	"cms-backend/internal/ratelimit"
	"cms-backend/internal/resources"
	"cms-backend/internal/staff"
	"cms-backend/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected", slog.String("db", cfg.MongoDB))
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var runner db.Runner = db.DirectRunner{}
	if cfg.MongoTransactions {
		runner = db.NewTxRunner(client)
		logger.Info("mongo transactions enabled")
	}

	var store cache.Store = cache.NewMemory()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisStore *cache.RedisStore
		if cfg.RedisURL != "" {
			redisStore, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisStore = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisStore.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisStore.Close()
		logger.Info("redis connected")
		store = redisStore
	} else {
		logger.Info("redis not configured, using in-process cache")
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "cms-backend",
		}
	}

	// Typed nils must not leak into the interfaces below.
	var (
		images   categories.ImageRemover
		uploader media.Uploader
	)
	if cfg.MinioEndpoint != "" {
		minioStore, err := media.NewMinio(media.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			logger.Error("minio setup failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			logger.Error("minio bucket check failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("minio connected", slog.String("bucket", cfg.MinioBucket))
		images, uploader = minioStore, minioStore
	} else {
		logger.Info("media storage disabled")
	}

	var notifier inquiries.Notifier
	if mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.StaffNotifyEmail, cfg.BrevoSandbox); mailer != nil {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
		notifier = mailer
	} else {
		logger.Info("brevo mailer disabled")
	}

	val := validation.New()
	debug := cfg.Debug()
	reads := cache.NewReadThrough(store, cfg.CacheTTL())
	views := engagement.NewTracker(store, time.Duration(cfg.ViewDedupMinutes)*time.Minute, logger)
	limiter := ratelimit.New(store, cfg.RateLimitWindow(), ratelimit.QuotasFromConfig(cfg))

	inquiryService := inquiries.NewService(inquiries.NewRepository(cols.Inquiries), runner, notifier,
		time.Duration(cfg.ContactDedupMinutes)*time.Minute, cfg.Timezone, logger)
	faqService := faqs.NewService(faqs.NewRepository(cols.Faqs), faqs.NewCategoryRepository(cols.FaqCategories),
		runner, store, views, cfg.Timezone, logger)
	categoryService := categories.NewService(categories.NewRepository(cols.ResourceCategories), runner, store, images, cfg.Timezone, logger)
	resourceService := resources.NewService(resources.Deps{
		Repo:       resources.NewRepository(cols.Resources),
		Categories: categoryService,
		Runner:     runner,
		Cache:      store,
		Views:      views,
		Images:     images,
		Location:   cfg.Timezone,
		Log:        logger,
	})
	staffService := staff.NewService(staff.NewRepository(cols.StaffUsers), jwtManager, cfg.Timezone, logger)
	dashboardService := dashboard.NewService(dashboard.NewMongoStore(cols), cfg.Timezone, logger)

	r := newRouter(routerDeps{
		cfg:        cfg,
		log:        logger,
		tokens:     jwtManager,
		limiter:    limiter,
		inquiries:  inquiries.NewHandler(inquiryService, val, logger, debug),
		faqs:       faqs.NewHandler(faqService, reads, val, logger, debug),
		categories: categories.NewHandler(categoryService, reads, val, logger, debug),
		resources:  resources.NewHandler(resourceService, reads, val, logger, debug),
		staff:      staff.NewHandler(staffService, jwtManager, val, logger, cfg.CookieSecure, debug),
		dashboard:  dashboard.NewHandler(dashboardService, logger, debug),
		media:      media.NewHandler(uploader, cfg.MediaMaxMB, logger),
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
