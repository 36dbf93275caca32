package redemption

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/techfussion/bts/internal/api"
	"github.com/techfussion/bts/internal/booking"
)

type VerifyRequest struct {
	QRData string `json:"qr_data" validate:"required"`
}

type Handler struct {
	verifier *Verifier
}

func NewHandler(verifier *Verifier) *Handler {
	return &Handler{verifier: verifier}
}

// VerifyTicket godoc
// @Summary      Verify and redeem a scanned ticket
// @Description  Parses the QR payload and marks the ticket as used. Staff only.
// @Tags         staff
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      VerifyRequest  true  "Scanned QR payload"
// @Success      200      {object}  Result
// @Failure      400      {object}  Result
// @Failure      404      {object}  Result
// @Router       /staff/tickets/verify [post]
func (h *Handler) VerifyTicket(c *gin.Context) {
	var req VerifyRequest
	if !api.BindAndValidate(c, &req) {
		return
	}

	result, err := h.verifier.Verify(c.Request.Context(), req.QRData)
	if err != nil {
		switch {
		case errors.Is(err, ErrMalformedPayload):
			c.JSON(http.StatusBadRequest, Result{Message: "Invalid ticket format"})
		case errors.Is(err, booking.ErrTicketNotFound):
			c.JSON(http.StatusNotFound, Result{Message: "Ticket not found"})
		default:
			c.JSON(http.StatusInternalServerError, Result{Message: "Failed to verify ticket"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
