package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/studio-desk/internal/api/http"
	"github.com/spec-kit/studio-desk/internal/api/http/handlers"
	"github.com/spec-kit/studio-desk/internal/auth"
	"github.com/spec-kit/studio-desk/internal/config"
	"github.com/spec-kit/studio-desk/internal/events"
	"github.com/spec-kit/studio-desk/internal/observability"
	"github.com/spec-kit/studio-desk/internal/persistence"
	"github.com/spec-kit/studio-desk/internal/repository"
	"github.com/spec-kit/studio-desk/internal/service"
	"github.com/spec-kit/studio-desk/internal/storage"
	"github.com/spec-kit/studio-desk/internal/upload"
	"github.com/spec-kit/studio-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	blobs, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to init blob store", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	fileRepo := repository.NewFileRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification), logger)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:          userRepo,
		RoleRepo:          roleRepo,
		PasswordResetRepo: resetRepo,
	})
	resolver := auth.NewResolver(userRepo, auth.NewRedisPrincipalCache(redis.Client, cfg.Cache.PrincipalTTL()), logger)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), resolver)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		FileRepo:    fileRepo,
		UserRepo:    userRepo,
		HistoryRepo: historyRepo,
		Blobs:       blobs,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	fileService := service.NewFileService(service.FileDependencies{
		TicketRepo: ticketRepo,
		FileRepo:   fileRepo,
		Blobs:      blobs,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	userService := service.NewUserService(cfg.Auth, service.UserDependencies{
		UserRepo:   userRepo,
		RoleRepo:   roleRepo,
		Principals: resolver,
	})
	roleService := service.NewRoleService(roleRepo, userRepo)
	stager := upload.NewStager(blobs, cfg.Upload.MaxFileBytes(), logger)

	metrics := observability.NewMetrics()
	// Bodies above BodyLimit are streamed instead of buffered; multipart
	// files then spill to temp files while the form is parsed.
	app := fiber.New(fiber.Config{
		AppName:           cfg.App.Name,
		BodyLimit:         bufferedBodyLimit,
		StreamRequestBody: true,
		ReadTimeout:       cfg.App.RequestTimeout(),
		ErrorHandler:      httptransport.NewErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	app.Use(httptransport.BodySizeGuard(jsonBodyLimit, uploadBodyLimit(cfg.Upload.MaxFileBytes())))

	readiness := map[string]handlers.Pinger{"postgres": pg, "storage": blobs}
	if redis.Enabled() {
		readiness["redis"] = redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness, metrics),
		Auth:           handlers.NewAuthHandler(authService, cfg.App.Env != "production"),
		Tickets:        handlers.NewTicketsHandler(ticketService, service.NewAssignmentService(ticketService), stager),
		Files:          handlers.NewFilesHandler(fileService, stager),
		Users:          handlers.NewUsersHandler(userService, roleService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("graceful shutdown incomplete", zap.Error(err))
	}
}

const (
	bufferedBodyLimit = 4 << 20
	jsonBodyLimit     = 1 << 20
)

// uploadBodyLimit leaves room for several maximum-size files plus form
// fields in one multipart request.
func uploadBodyLimit(maxFile int64) int64 {
	const headroom = 1 << 20
	return maxFile*4 + headroom
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
