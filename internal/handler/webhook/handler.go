package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinova/booking-api/internal/service/payment"
	apperrors "github.com/clinova/booking-api/pkg/errors"
)

// Handler ingests gateway confirmations. The gateway retries anything that is
// not a 200, so every parseable delivery is acknowledged even when it is
// discarded; rejection shows up in logs and metrics only.
type Handler struct {
	service *payment.Service
}

func NewHandler(service *payment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	// The gateway confirms via POST but some integrations redirect via GET
	// with the same fields in the query string.
	rg.POST("/payments/webhooks/gateway", h.Handle)
	rg.GET("/payments/webhooks/gateway", h.Handle)
}

func (h *Handler) Handle(c *gin.Context) {
	var payload payment.WebhookPayload

	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&payload)
	} else {
		err = c.ShouldBind(&payload)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unparseable payload"})
		return
	}

	result, err := h.service.HandleWebhook(c.Request.Context(), &payload)
	if err != nil {
		// Discarded (bad signature, bad reference) or failed internally.
		// Either way the gateway gets its ack; retrying will not help it.
		if apperrors.Is(err, apperrors.ErrSecurity) || apperrors.Is(err, apperrors.ErrBadRequest) {
			c.JSON(http.StatusOK, gin.H{"status": "discarded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": string(result)})
}
