package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/agency-api/internal/service"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
	"github.com/brightpath/agency-api/pkg/export"
	"github.com/brightpath/agency-api/pkg/response"
)

// ReportHandler exposes the fiscal-year reporting endpoints.
type ReportHandler struct {
	ledger *service.LedgerService
	alerts *service.AlertService
	csv    *export.CSVExporter
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(ledger *service.LedgerService, alerts *service.AlertService, csv *export.CSVExporter) *ReportHandler {
	return &ReportHandler{ledger: ledger, alerts: alerts, csv: csv}
}

func fiscalYearParam(c *gin.Context) (int, error) {
	raw := c.Query("fiscalYear")
	if raw == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 2000 || year > 2200 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "fiscalYear must be a calendar year")
	}
	return year, nil
}

// Stats godoc
// @Summary Fiscal-year financial summary
// @Tags Reports
// @Produce json
// @Param fiscalYear query int false "Fiscal year start (calendar year)"
// @Success 200 {object} response.Envelope
// @Router /reports/stats [get]
func (h *ReportHandler) Stats(c *gin.Context) {
	year, err := fiscalYearParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.ledger.AdminStats(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Ledger godoc
// @Summary Fiscal-year ledger grouped by parent and tutor
// @Tags Reports
// @Produce json
// @Param fiscalYear query int false "Fiscal year start (calendar year)"
// @Success 200 {object} response.Envelope
// @Router /reports/ledger [get]
func (h *ReportHandler) Ledger(c *gin.Context) {
	year, err := fiscalYearParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ledger, err := h.ledger.GroupedLedger(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// LedgerCSV godoc
// @Summary Download the fiscal-year ledger as CSV
// @Tags Reports
// @Produce text/csv
// @Param fiscalYear query int false "Fiscal year start (calendar year)"
// @Success 200 {file} binary
// @Router /reports/ledger/csv [get]
func (h *ReportHandler) LedgerCSV(c *gin.Context) {
	year, err := fiscalYearParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	dataset, title, err := h.ledger.ExportDataset(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := h.csv.Render(dataset)
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to render ledger"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+title+`.csv"`)
	c.Data(http.StatusOK, "text/csv", body)
}

// Compliance godoc
// @Summary Tutor and parent punctuality report
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/compliance [get]
func (h *ReportHandler) Compliance(c *gin.Context) {
	report, err := h.alerts.Compliance(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
