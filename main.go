package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"masjid-khairat-system/handlers"
	"masjid-khairat-system/middleware"
	"masjid-khairat-system/models"
	"masjid-khairat-system/services"
	"masjid-khairat-system/utils"
	"masjid-khairat-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("no .env file found, reading environment variables directly")
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("LOG_LEVEL") == "debug" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 4 * 1024 * 1024,
	})

	// All non-webhook requests must come through the Gateway.
	app.Use(middleware.GatewayAuthMiddleware())
	app.Use(middleware.UserContextMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		logrus.Warn("ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles, X-Signature",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logrus.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitCredentialKey(); err != nil {
		logrus.Fatal("failed to initialize credential encryption: ", err)
	}

	if err := utils.InitR2(); err != nil {
		logrus.Fatal("failed to initialize R2 client: ", err)
	}
	if !utils.R2Enabled() {
		logrus.Warn("R2 not configured, webhook-log archive job disabled")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatal("failed to connect to database: ", err)
	}

	if err := db.AutoMigrate(
		&models.Mosque{},
		&models.Member{},
		&models.KhairatProgram{},
		&models.Claim{},
		&models.Contribution{},
		&models.LegacyRecord{},
		&models.PaymentProvider{},
		&models.WebhookLog{},
	); err != nil {
		logrus.Fatal("failed to migrate database: ", err)
	}

	mosqueService := services.NewMosqueService(db)
	memberService := services.NewMemberService(db)
	claimService := services.NewClaimService(db)
	contributionService := services.NewContributionService(db)
	providerService := services.NewProviderService(db)
	legacyService := services.NewLegacyService(db)
	webhookService := services.NewWebhookService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recheckWorker := workers.NewPaymentRecheckWorker(db)
	go recheckWorker.Start(ctx, 5*time.Minute)

	contributionService.StartMaintenanceScheduler(webhookService)

	handlers.SetupMosqueRoutes(app, mosqueService, memberService)
	handlers.SetupClaimRoutes(app, claimService)
	handlers.SetupPaymentRoutes(app, contributionService, providerService)
	handlers.SetupLegacyRoutes(app, legacyService)
	handlers.SetupWebhookRoutes(app, webhookService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			logrus.Error("server error: ", err)
		}
	}()

	logrus.Info("server running on http://localhost:" + port)
	logrus.Info("payment recheck worker running (every 5m)")
	logrus.Info("gateway auth enforced on all non-webhook routes")

	<-ctx.Done()
	logrus.Info("shutting down server...")
	if err := app.Shutdown(); err != nil {
		logrus.Error("shutdown error: ", err)
	}
}
