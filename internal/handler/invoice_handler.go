package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/agency-api/internal/models"
	"github.com/brightpath/agency-api/internal/service"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
	"github.com/brightpath/agency-api/pkg/export"
	"github.com/brightpath/agency-api/pkg/response"
)

// InvoiceHandler exposes parent invoice and tutor payable endpoints.
type InvoiceHandler struct {
	invoices *service.InvoiceService
	pdf      *export.PDFExporter
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(invoices *service.InvoiceService, pdf *export.PDFExporter) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, pdf: pdf}
}

// List godoc
// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param kind query string false "Filter by kind"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var filter models.InvoiceFilter
	filter.StudentID = c.Query("studentId")
	filter.Status = models.InvoiceStatus(c.Query("status"))
	filter.Kind = models.InvoiceKind(c.Query("kind"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	invoices, pagination, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// Get godoc
// @Summary Get an invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoice, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// GeneratePackage godoc
// @Summary Issue a package invoice for a student
// @Tags Invoices
// @Produce json
// @Param id path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/invoices/package [post]
func (h *InvoiceHandler) GeneratePackage(c *gin.Context) {
	invoice, err := h.invoices.GenerateForSessionPackage(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// GenerateRecurring godoc
// @Summary Issue a recurring invoice for a student
// @Tags Invoices
// @Produce json
// @Param id path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/invoices/recurring [post]
func (h *InvoiceHandler) GenerateRecurring(c *gin.Context) {
	invoice, err := h.invoices.GenerateRecurringForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// CreateAdhoc godoc
// @Summary Issue an ad-hoc invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param payload body service.CreateAdhocInvoiceRequest true "Invoice payload"
// @Success 201 {object} response.Envelope
// @Router /invoices/adhoc [post]
func (h *InvoiceHandler) CreateAdhoc(c *gin.Context) {
	var req service.CreateAdhocInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.invoices.CreateAdhoc(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// RecordPayment godoc
// @Summary Record a payment against an invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.invoices.ApplyPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// ClaimPaid godoc
// @Summary Record the parent's claim that an invoice is paid
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id}/claim-paid [post]
func (h *InvoiceHandler) ClaimPaid(c *gin.Context) {
	invoice, err := h.invoices.MarkParentClaimedPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Cancel godoc
// @Summary Cancel an invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	invoice, err := h.invoices.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// ProcessScheduled godoc
// @Summary Send all due scheduled invoices
// @Tags Invoices
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /invoices/process-scheduled [post]
func (h *InvoiceHandler) ProcessScheduled(c *gin.Context) {
	promoted, err := h.invoices.ProcessScheduled(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, promoted, nil, map[string]interface{}{"sent": len(promoted)})
}

// DownloadPDF godoc
// @Summary Download an invoice statement as PDF
// @Tags Invoices
// @Produce application/pdf
// @Param id path string true "Invoice ID"
// @Success 200 {file} binary
// @Router /invoices/{id}/pdf [get]
func (h *InvoiceHandler) DownloadPDF(c *gin.Context) {
	dataset, title, err := h.invoices.Statement(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := h.pdf.Render(dataset, title)
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to render invoice"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoice.pdf"`)
	c.Data(http.StatusOK, "application/pdf", body)
}

// ListTutorInvoices godoc
// @Summary List tutor payables
// @Tags TutorInvoices
// @Produce json
// @Param tutorId query string false "Filter by tutor"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /tutor-invoices [get]
func (h *InvoiceHandler) ListTutorInvoices(c *gin.Context) {
	invoices, err := h.invoices.ListTutorInvoices(c.Request.Context(),
		c.Query("tutorId"), models.TutorInvoiceStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, nil)
}

// MarkTutorInvoicePaid godoc
// @Summary Settle an approved tutor payable
// @Tags TutorInvoices
// @Produce json
// @Param id path string true "Tutor invoice ID"
// @Success 200 {object} response.Envelope
// @Router /tutor-invoices/{id}/pay [post]
func (h *InvoiceHandler) MarkTutorInvoicePaid(c *gin.Context) {
	invoice, err := h.invoices.MarkTutorInvoicePaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}
