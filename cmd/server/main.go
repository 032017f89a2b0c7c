package main // Entry point package

import (
	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/minhvu/movie-ticket-booking/internal/config"
	"github.com/minhvu/movie-ticket-booking/internal/database"
	"github.com/minhvu/movie-ticket-booking/internal/handler"
	appmw "github.com/minhvu/movie-ticket-booking/internal/middleware"
	"github.com/minhvu/movie-ticket-booking/internal/payment"
	"github.com/minhvu/movie-ticket-booking/internal/queue"
	"github.com/minhvu/movie-ticket-booking/internal/reaper"
	"github.com/minhvu/movie-ticket-booking/internal/repository"
	"github.com/minhvu/movie-ticket-booking/internal/router"
	"github.com/minhvu/movie-ticket-booking/pkg/logger"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env vars directly

	cfg := config.Load() // Load environment config

	logg := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logg.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logg.Fatal("database connection failed", "err", err)
	}
	defer db.Close()

	// Repositories over the shared pool.
	showtimeRepo := repository.NewShowtimeRepo(db)
	seatRepo := repository.NewSeatRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	transactionRepo := repository.NewTransactionRepo(db)
	ticketRepo := repository.NewTicketRepo(db)
	foodRepo := repository.NewFoodRepo(db)

	bookingHandler := handler.NewBookingHandler(showtimeRepo, seatRepo, bookingRepo, transactionRepo, ticketRepo, foodRepo, logg)

	gateway := payment.NewPayPalClient(
		cfg.PayPalMode,
		cfg.PayPalClientID,
		cfg.PayPalSecret,
		cfg.BackendURL+"/v1/payments/paypal/execute",
		cfg.BackendURL+"/v1/payments/paypal/cancel",
	)
	paymentHandler := handler.NewPaymentHandler(gateway, bookingRepo, transactionRepo, bookingHandler, cfg.FrontendURL, cfg.PaymentDeepLink, logg)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()

	// Redis-backed rate limiting and response caching.  When Redis is
	// unreachable the client is nil and both middlewares become no-ops.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logg.Warn("redis unavailable; rate limiting and response cache disabled")
	}
	e.Use(appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheMW := appmw.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e) // Health check
	router.RegisterBooking(e, bookingHandler, cfg.JWTSecret, cacheMW)
	router.RegisterPayment(e, paymentHandler, cfg.JWTSecret)

	// Background consumer for booking.confirmed events.  Runs its own
	// reconnect loop and never takes the server down.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			logg.Warn("booking consumer stopped", "err", err)
		}
	}()

	// Sweep stale pending bookings so abandoned checkouts release seats.
	rp := reaper.New(bookingRepo, cfg.PendingTTL, cfg.ReaperInterval, logg)
	if err := rp.Start(); err != nil {
		logg.Fatal("reaper start failed", "err", err)
	}
	defer rp.Stop()

	addr := ":" + cfg.Port // Address string with port
	logg.Info("listening", "addr", addr, "env", cfg.Env)

	if err := e.Start(addr); err != nil { // Start HTTP server
		logg.Fatal("server stopped", "err", err)
	}
}
