package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/techfussion/bts/internal/api"
	"github.com/techfussion/bts/internal/auth"
	"github.com/techfussion/bts/internal/wallet"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Initialize godoc
// @Summary      Start a Paystack payment
// @Description  Records a pending payment and returns the Paystack checkout URL.
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      InitiateRequest  true  "Amount in naira"
// @Success      200      {object}  InitiateResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      502      {object}  api.ErrorResponse
// @Router       /payments/initialize [post]
func (h *Handler) Initialize(c *gin.Context) {
	caller, ok := auth.GetCaller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req InitiateRequest
	if !api.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.service.Initiate(c.Request.Context(), caller, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrAmountTooLow):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, wallet.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrGateway):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment failed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize payment"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Verify godoc
// @Summary      Verify a Paystack payment
// @Description  Confirms the payment with Paystack and credits the wallet once.
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        reference  path      string  true  "Payment reference"
// @Success      200        {object}  VerifyResult
// @Failure      402        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Failure      503        {object}  api.ErrorResponse
// @Router       /payments/verify/{reference} [get]
func (h *Handler) Verify(c *gin.Context) {
	caller, ok := auth.GetCaller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	result, err := h.service.Verify(c.Request.Context(), caller, c.Param("reference"))
	if err != nil {
		switch {
		case errors.Is(err, ErrPaymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		case errors.Is(err, ErrPaymentFailed):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment verification failed"})
		case errors.Is(err, ErrGatewayUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment gateway unavailable, try again"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify payment"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListPayments godoc
// @Summary      List my payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Payment
// @Router       /payments [get]
func (h *Handler) ListPayments(c *gin.Context) {
	caller, ok := auth.GetCaller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	payments, err := h.service.ListForUser(c.Request.Context(), caller.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}

	c.JSON(http.StatusOK, payments)
}
