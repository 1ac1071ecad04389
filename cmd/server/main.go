package main

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/services"
)

func main() {
	cfg := config.Load()

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	db := database.Connect(cfg.DatabaseURL)

	provider, err := services.NewPaymentProvider(cfg, zlog)
	if err != nil {
		zlog.Fatal("payment provider setup failed", zap.Error(err))
	}

	mailer := services.NewMailer(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom, cfg.AdminEmail, zlog)

	housekeeper := services.NewHousekeeper(db, zlog)
	if err := housekeeper.Start(); err != nil {
		zlog.Fatal("housekeeping setup failed", zap.Error(err))
	}
	defer housekeeper.Stop()

	app := fiber.New(fiber.Config{
		AppName: "Storefront Backend",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "internal server error"

			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
				message = fiberErr.Message
			} else {
				// Unexpected errors are logged, never echoed to clients.
				zlog.Error("unhandled error",
					zap.String("path", c.Path()),
					zap.Error(err))
			}

			return c.Status(code).JSON(fiber.Map{"success": false, "error": message})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.FrontendURL,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	routes.Register(app, db, cfg, provider, mailer, zlog)

	zlog.Info("starting server",
		zap.String("port", cfg.AppPort),
		zap.String("payment_provider", provider.Name()))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		zlog.Fatal("fiber listen failed", zap.Error(err))
	}
}
