package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/agency-api/internal/models"
	"github.com/brightpath/agency-api/internal/service"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
	"github.com/brightpath/agency-api/pkg/response"
)

// AlertHandler exposes compliance alert endpoints.
type AlertHandler struct {
	alerts *service.AlertService
}

// NewAlertHandler constructs AlertHandler.
func NewAlertHandler(alerts *service.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

type dismissRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ListSessionAlerts godoc
// @Summary List session logging alerts
// @Tags Alerts
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /alerts/sessions [get]
func (h *AlertHandler) ListSessionAlerts(c *gin.Context) {
	alerts, err := h.alerts.ListSessionAlerts(c.Request.Context(), models.AlertStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// ListInvoiceAlerts godoc
// @Summary List invoice payment alerts
// @Tags Alerts
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /alerts/invoices [get]
func (h *AlertHandler) ListInvoiceAlerts(c *gin.Context) {
	alerts, err := h.alerts.ListInvoiceAlerts(c.Request.Context(), models.AlertStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// DismissSessionAlert godoc
// @Summary Dismiss a session logging alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Admin ID"
// @Param id path string true "Alert ID"
// @Param payload body dismissRequest true "Dismissal payload"
// @Success 200 {object} response.Envelope
// @Router /alerts/sessions/{id}/dismiss [post]
func (h *AlertHandler) DismissSessionAlert(c *gin.Context) {
	adminID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	alert, err := h.alerts.DismissSessionAlert(c.Request.Context(), c.Param("id"), adminID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}

// DismissInvoiceAlert godoc
// @Summary Dismiss an invoice payment alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Admin ID"
// @Param id path string true "Alert ID"
// @Param payload body dismissRequest true "Dismissal payload"
// @Success 200 {object} response.Envelope
// @Router /alerts/invoices/{id}/dismiss [post]
func (h *AlertHandler) DismissInvoiceAlert(c *gin.Context) {
	adminID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	alert, err := h.alerts.DismissInvoiceAlert(c.Request.Context(), c.Param("id"), adminID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}

// Scan godoc
// @Summary Run the compliance sweeps immediately
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alerts/scan [post]
func (h *AlertHandler) Scan(c *gin.Context) {
	ctx := c.Request.Context()
	sessions, err := h.alerts.ScanSessionLogging(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	invoices, err := h.alerts.ScanInvoicePayment(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	reminders, err := h.alerts.CheckAndSendInvoiceReminders(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"session_alerts": sessions,
		"invoice_alerts": invoices,
		"reminders_sent": reminders,
	}, nil)
}
