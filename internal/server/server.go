package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/techfussion/bts/internal/auth"
	"github.com/techfussion/bts/internal/booking"
	"github.com/techfussion/bts/internal/config"
	"github.com/techfussion/bts/internal/payment"
	"github.com/techfussion/bts/internal/redemption"
	"github.com/techfussion/bts/internal/user"
	"github.com/techfussion/bts/internal/wallet"
)

// Handlers groups the HTTP handlers of every domain package.
type Handlers struct {
	User       *user.Handler
	Wallet     *wallet.Handler
	Booking    *booking.Handler
	Payment    *payment.Handler
	Redemption *redemption.Handler
}

type Server struct {
	router  *gin.Engine
	http    *http.Server
	limiter *RateLimiter
}

func New(cfg *config.Config, h Handlers, checks map[string]HealthCheck) *Server {
	router := gin.New()
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute)

	router.Use(
		gin.Recovery(),
		RequestIDMiddleware(),
		RequestLoggingMiddleware(),
		MetricsMiddleware(),
		corsMiddleware(),
		limiter.Middleware(),
	)

	router.GET("/health", Health(checks))
	router.GET("/metrics", Metrics())

	public := router.Group("/auth")
	{
		public.POST("/register", h.User.Register)
		public.POST("/login", h.User.Login)
		public.POST("/refresh", h.User.RefreshToken)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", h.User.GetMe)

		protected.GET("/wallet", h.Wallet.GetBalance)
		protected.GET("/wallet/transactions", h.Wallet.ListTransactions)
		protected.POST("/wallet/fund", h.Wallet.Fund)

		protected.POST("/bookings", h.Booking.CreateBooking)
		protected.GET("/bookings", h.Booking.ListMyBookings)
		protected.GET("/bookings/:id", h.Booking.GetBooking)
		protected.GET("/bookings/:id/qr", h.Booking.GetQRCode)

		protected.POST("/payments/initialize", h.Payment.Initialize)
		protected.GET("/payments/verify/:reference", h.Payment.Verify)
		protected.GET("/payments", h.Payment.ListPayments)
	}

	staff := router.Group("/staff")
	staff.Use(authMiddleware, auth.RequireRole(auth.RoleStaff))
	{
		staff.POST("/tickets/verify", h.Redemption.VerifyTicket)
		staff.GET("/bookings", h.Booking.ListAllBookings)
		staff.GET("/bookings/stats", h.Booking.GetStats)
		staff.GET("/bookings/daily", h.Booking.GetDailyStats)
		staff.POST("/bookings/expire", h.Booking.ExpireBookings)
		staff.GET("/wallets/:userID/reconcile", h.Wallet.Reconcile)
	}

	return &Server{
		router:  router,
		limiter: limiter,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
