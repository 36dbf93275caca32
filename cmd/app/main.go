package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/techfussion/bts/internal/booking"
	"github.com/techfussion/bts/internal/config"
	"github.com/techfussion/bts/internal/db"
	"github.com/techfussion/bts/internal/email"
	"github.com/techfussion/bts/internal/events"
	"github.com/techfussion/bts/internal/logger"
	"github.com/techfussion/bts/internal/payment"
	"github.com/techfussion/bts/internal/payment/paystack"
	"github.com/techfussion/bts/internal/qrcode"
	"github.com/techfussion/bts/internal/redemption"
	"github.com/techfussion/bts/internal/server"
	"github.com/techfussion/bts/internal/user"
	"github.com/techfussion/bts/internal/wallet"
)

// @title BTS API
// @version 1.0
// @description University bus ticket system: wallet, tickets, payments and boarding verification.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()
	defer logger.Sync()

	logger.Info("Starting BTS application")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	emailService := email.New(email.Config{
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
		SMTPHost: cfg.SMTPHost,
		SMTPPort: cfg.SMTPPort,
		SMTPUser: cfg.SMTPUser,
		SMTPPass: cfg.SMTPPass,
	}, rdb)
	defer emailService.Close()
	logger.Info("Email service initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go emailService.Start(ctx)

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		logger.Info("Kafka publisher initialized", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Warn("KAFKA_BROKERS not set, domain events are discarded")
	}
	defer publisher.Close()

	if cfg.PaystackSecretKey == "" {
		logger.Warn("PAYSTACK_SECRET_KEY not set, gateway calls will be rejected")
	}
	gateway := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.PaystackCallbackURL, cfg.GatewayTimeout)

	txr := db.NewTransactor(database)
	refs := booking.NewGenerator()

	ledger := wallet.NewLedger(wallet.NewRepository(database), txr, publisher)
	userService := user.NewService(user.NewRepository(database), ledger, txr, cfg.JWTSecret)
	bookingService := booking.NewService(
		booking.NewRepository(database),
		ledger,
		txr,
		refs,
		qrcode.NewPNGEncoder(),
		emailService,
		publisher,
	)
	paymentService := payment.NewService(
		payment.NewRepository(database),
		ledger,
		txr,
		gateway,
		refs,
		emailService,
		publisher,
		cfg.MinPaymentAmount,
	)

	srv := server.New(cfg, server.Handlers{
		User:       user.NewHandler(userService),
		Wallet:     wallet.NewHandler(ledger),
		Booking:    booking.NewHandler(bookingService, cfg.TicketFare),
		Payment:    payment.NewHandler(paymentService),
		Redemption: redemption.NewHandler(redemption.NewVerifier(bookingService)),
	}, map[string]server.HealthCheck{
		"database": database.PingContext,
		"redis":    emailService.Ping,
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
