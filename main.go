package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/config"
	"github.com/pih12/Pravah/controllers"
	"github.com/pih12/Pravah/events"
	"github.com/pih12/Pravah/feed"
	"github.com/pih12/Pravah/identity"
	"github.com/pih12/Pravah/issues"
	"github.com/pih12/Pravah/mapview"
	"github.com/pih12/Pravah/metrics"
	"github.com/pih12/Pravah/middlewares"
	"github.com/pih12/Pravah/models"
	"github.com/pih12/Pravah/routes"
	"github.com/pih12/Pravah/session"
	"github.com/pih12/Pravah/upload"
	authUtils "github.com/pih12/Pravah/utils"
)

func main() {
	cfg := config.Load()

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.Register()

	rdb, err := config.ConnectRedis(ctx, cfg.RedisAddress, cfg.RedisPassword)
	if err != nil {
		return err
	}
	defer rdb.Close()
	logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddress))

	var (
		issueStore issues.Store
		accounts   identity.AccountStore
		profiles   identity.ProfileStore
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("using in-memory stores, data is lost on restart")
		issueStore = issues.NewMemoryStore(nil)
		accounts = identity.NewMemoryAccountStore()
		profiles = identity.NewMemoryProfileStore()
	case config.StoreMongo:
		client, db, err := config.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

		ms := issues.NewMongoStore(db)
		if err := ms.EnsureIndexes(ctx); err != nil {
			return err
		}
		as := identity.NewMongoAccountStore(db)
		if err := as.EnsureIndexes(ctx); err != nil {
			return err
		}
		issueStore, accounts, profiles = ms, as, identity.NewMongoProfileStore(db)
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	signer, err := authUtils.NewSigner(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	sessions := session.NewRedisStore(rdb, cfg.SessionTTL)
	intents := identity.NewRedisIntentStore(rdb)

	idLog := logger.Named("identity")
	resolver := identity.NewResolver(profiles, intents, sessions, identity.ResolverConfig{
		AdminEmails:     cfg.AdminEmails,
		LegacyHeuristic: cfg.LegacyHeuristic,
		Attempts:        cfg.ProfileReadAttempts,
		Backoff:         cfg.ProfileReadBackoff,
	}, idLog)
	idSvc := identity.NewService(identity.NewProvider(accounts), resolver, profiles, intents, sessions,
		signer.GenerateToken, registrationRoles(cfg.RegistrationRoles, logger), idLog)

	locator := mapview.NewFallbackLocator(mapview.LatLng{Lat: cfg.MapFallbackLat, Lng: cfg.MapFallbackLng}, cfg.MapFallbackSpread, 0)
	issueSvc := issues.NewService(issueStore, locator, logger.Named("issues"))

	f := feed.New(issueSvc, logger.Named("feed"))
	notifier := feed.NewRedisNotifier(rdb, cfg.FeedChannel, f, logger.Named("feed"))
	issueSvc.AddNotifier(notifier)
	go notifier.Run(ctx)

	if cfg.AMQPURL != "" {
		pub, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger.Named("events"))
		if err != nil {
			logger.Warn("issue events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			issueSvc.AddNotifier(pub)
			logger.Info("publishing issue events", zap.String("exchange", cfg.AMQPExchange))
		}
	}

	uploader, err := newUploader(ctx, cfg, logger.Named("upload"))
	if err != nil {
		return err
	}

	hub := feed.NewHub(f, logger.Named("hub"))
	go hub.Run(ctx)

	router := routes.NewRouter(routes.Handlers{
		Auth:  controllers.NewAuthController(idSvc, cfg.IsProduction(), logger),
		User:  controllers.NewUserController(idSvc, sessions, logger),
		Issue: controllers.NewIssueController(issueSvc, f, uploader, sessions, logger),
		Map:   controllers.NewMapController(f, logger),
		Feed:  controllers.NewFeedController(hub, f, cfg.CORSOrigins, logger),
	}, routes.Options{
		Auth:        middlewares.AuthMiddleware(signer, sessions, idSvc, logger),
		RateLimit:   middlewares.IssueRateLimiter(rdb, cfg.IssueLimitPrefix, cfg.IssueDailyLimit, logger),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newUploader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (upload.Uploader, error) {
	switch cfg.UploadDriver {
	case config.UploadCloudinary:
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryUploadPreset == "" {
			logger.Warn("cloudinary is not configured, photo uploads disabled")
			return upload.Disabled{}, nil
		}
		return upload.NewCloudinaryUploader(cfg.CloudinaryBaseURL, cfg.CloudinaryCloudName, cfg.CloudinaryUploadPreset, logger), nil
	case config.UploadMinio:
		u, err := upload.NewMinioUploader(upload.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := u.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return u, nil
	case config.UploadNone:
		return upload.Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown UPLOAD_DRIVER %q", cfg.UploadDriver)
	}
}

func registrationRoles(names []string, logger *zap.Logger) []models.Role {
	var roles []models.Role
	for _, name := range names {
		r, ok := models.ParseRole(name)
		if !ok {
			logger.Warn("ignoring unknown registration role", zap.String("role", name))
			continue
		}
		roles = append(roles, r)
	}
	return roles
}
