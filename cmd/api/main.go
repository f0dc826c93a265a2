package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"b24-sync/internal/bitrix"
	common_api "b24-sync/internal/common/api"
	"b24-sync/internal/config"
	"b24-sync/internal/database"
	"b24-sync/internal/features/audit"
	"b24-sync/internal/features/dailysync"
	sync_feature "b24-sync/internal/features/sync"
	"b24-sync/internal/features/system"
	"b24-sync/internal/features/token"
	"b24-sync/internal/features/webhook"
	"b24-sync/internal/logger"
	"b24-sync/internal/middleware"
	"b24-sync/internal/queue"
	"b24-sync/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
	log.Printf("Registered %d routes\n", len(routes))
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	utils.SetSecret(cfg.JWTSecret)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// StartConsumer ties the queue worker pool to the app lifecycle.
func StartConsumer(lc fx.Lifecycle, consumer *queue.Consumer) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			consumer.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			consumer.Stop()
			return nil
		},
	})
}

// StartSchedulers brings up the nightly resync and the token refresh crons.
func StartSchedulers(lc fx.Lifecycle, daily dailysync.DailySyncService, tokens token.TokenService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := daily.InitializeScheduler(); err != nil {
				return err
			}
			return tokens.InitializeScheduler()
		},
		OnStop: func(ctx context.Context) error {
			_ = daily.StopScheduler()
			return tokens.StopScheduler()
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, queueRepo queue.QueueRepository) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := queueRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure queue indexes: %v", err)
				}
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			NewFiberServer,
			database.NewDatabase,

			// Repositories
			audit.NewAuditRepository,
			queue.NewQueueRepository,
			sync_feature.NewSyncRunRepository,
			dailysync.NewDailyRunRepository,
			token.NewSecretRepository,

			// Services
			audit.NewAuditService,
			token.NewTokenService,
			sync_feature.NewSyncService,
			dailysync.NewDailySyncService,
			system.NewHub,

			// Bitrix client
			bitrix.NewClient,
			webhook.TypeMapFromConfig,

			// Interface adapters
			func(s token.TokenService) bitrix.TokenSource { return s },
			func(c *bitrix.Client) sync_feature.CRMClient { return c },
			func(c *bitrix.Client) dailysync.CRMLister { return c },
			func(r queue.QueueRepository) queue.Publisher { return r },
			func(h *system.Hub) sync_feature.EventBroadcaster { return h },
			func(s sync_feature.SyncService) queue.Handler { return s.ProcessEvent },

			// Queue consumer
			queue.NewConsumer,

			// Controllers
			sync_feature.NewSyncController,
			dailysync.NewDailySyncController,
			token.NewTokenController,
			webhook.NewWebhookController,
			system.NewWebSocketController,

			// API Routes
			AsRoute(webhook.NewWebhookApi),
			AsRoute(sync_feature.NewSyncApi),
			AsRoute(dailysync.NewDailySyncApi),
			AsRoute(token.NewTokenApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(system.NewWebSocketApi),
			AsRoute(system.NewHealthApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartServer,
			StartConsumer,
			StartSchedulers,
			InitializeIndexes,
		),
	)

	app.Run()
}
