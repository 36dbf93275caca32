package booking

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/techfussion/bts/internal/api"
	"github.com/techfussion/bts/internal/auth"
	"github.com/techfussion/bts/internal/wallet"
)

type Handler struct {
	service Service
	fare    decimal.Decimal
}

func NewHandler(service Service, fare decimal.Decimal) *Handler {
	return &Handler{
		service: service,
		fare:    fare,
	}
}

// CreateBooking godoc
// @Summary      Buy a bus ticket
// @Description  Debits the fixed fare from the wallet and issues a ticket with its QR code.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      201  {object}  CreateBookingResponse
// @Failure      402  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /bookings [post]
func (h *Handler) CreateBooking(c *gin.Context) {
	caller, ok := auth.GetCaller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	booking, debit, err := h.service.CreateBooking(c.Request.Context(), caller, h.fare)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInsufficientFunds):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient wallet balance. Please fund your wallet."})
		case errors.Is(err, wallet.ErrWalletNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		}
		return
	}

	c.JSON(http.StatusCreated, CreateBookingResponse{
		Message: "Ticket purchased successfully",
		Booking: booking,
		Balance: debit.BalanceAfter,
	})
}

// ListMyBookings godoc
// @Summary      List my bookings
// @Description  Returns bookings of the authenticated user, newest first.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Booking
// @Failure      500  {object}  api.ErrorResponse
// @Router       /bookings [get]
func (h *Handler) ListMyBookings(c *gin.Context) {
	caller, ok := auth.GetCaller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	bookings, err := h.service.ListForUser(c.Request.Context(), caller.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// GetBooking godoc
// @Summary      Get booking
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Booking ID"
// @Success      200  {object}  Booking
// @Failure      404  {object}  api.ErrorResponse
// @Router       /bookings/{id} [get]
func (h *Handler) GetBooking(c *gin.Context) {
	caller, ok := auth.GetCaller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, err := h.service.GetForUser(c.Request.Context(), caller.UserID, id)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch booking"})
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetQRCode godoc
// @Summary      Download ticket QR code
// @Tags         bookings
// @Security     BearerAuth
// @Produce      png
// @Param        id   path      int  true  "Booking ID"
// @Success      200  {file}    binary
// @Failure      404  {object}  api.ErrorResponse
// @Router       /bookings/{id}/qr [get]
func (h *Handler) GetQRCode(c *gin.Context) {
	caller, ok := auth.GetCaller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	filename, png, err := h.service.QRCode(c.Request.Context(), caller, id)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load QR code"})
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "image/png", png)
}

// ListAllBookings godoc
// @Summary      List all bookings
// @Description  Returns every booking with its owner. Staff only.
// @Tags         staff
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "ACTIVE, USED or EXPIRED"
// @Param        q       query     string  false  "Booking reference, ticket number or username"
// @Success      200     {array}   BookingWithUser
// @Failure      400     {object}  api.ErrorResponse
// @Router       /staff/bookings [get]
func (h *Handler) ListAllBookings(c *gin.Context) {
	status := Status(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be ACTIVE, USED or EXPIRED"})
		return
	}

	bookings, err := h.service.ListAll(c.Request.Context(), ListFilter{Status: status, Query: c.Query("q")})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// GetStats godoc
// @Summary      Booking counts per status
// @Tags         staff
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Stats
// @Router       /staff/bookings/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetDailyStats godoc
// @Summary      Tickets bought per day
// @Description  Daily ticket counts and fare revenue in [from, to). Defaults to the last 7 days.
// @Tags         staff
// @Security     BearerAuth
// @Produce      json
// @Param        from  query     string  false  "First day (YYYY-MM-DD)"
// @Param        to    query     string  false  "Day after the last (YYYY-MM-DD)"
// @Success      200   {array}   DailyStats
// @Failure      400   {object}  api.ErrorResponse
// @Router       /staff/bookings/daily [get]
func (h *Handler) GetDailyStats(c *gin.Context) {
	to := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	from := to.AddDate(0, 0, -7)

	var err error
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(dayLayout, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}
		if c.Query("from") == "" {
			from = to.AddDate(0, 0, -7)
		}
	}
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(dayLayout, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
	}

	stats, err := h.service.Daily(c.Request.Context(), from, to)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch daily stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExpireBookings godoc
// @Summary      Expire unused tickets
// @Description  Marks ACTIVE bookings created before the cutoff as EXPIRED.
// @Tags         staff
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      ExpireRequest  true  "Cutoff (RFC3339)"
// @Success      200      {object}  ExpireResponse
// @Router       /staff/bookings/expire [post]
func (h *Handler) ExpireBookings(c *gin.Context) {
	var req ExpireRequest
	if !api.BindAndValidate(c, &req) {
		return
	}

	n, err := h.service.ExpireBefore(c.Request.Context(), req.Before)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to expire bookings"})
		return
	}

	c.JSON(http.StatusOK, ExpireResponse{Expired: n})
}
