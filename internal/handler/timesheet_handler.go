package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/agency-api/internal/models"
	"github.com/brightpath/agency-api/internal/service"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
	"github.com/brightpath/agency-api/pkg/response"
)

// TimesheetHandler exposes the weekly timesheet workflow.
type TimesheetHandler struct {
	timesheets *service.TimesheetService
}

// NewTimesheetHandler constructs TimesheetHandler.
func NewTimesheetHandler(timesheets *service.TimesheetService) *TimesheetHandler {
	return &TimesheetHandler{timesheets: timesheets}
}

// LogSession godoc
// @Summary Log a tutoring session
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Tutor ID"
// @Param payload body service.LogSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /timesheets/entries [post]
func (h *TimesheetHandler) LogSession(c *gin.Context) {
	tutorID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.LogSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.timesheets.LogSession(c.Request.Context(), tutorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// UpdateEntry godoc
// @Summary Edit a logged session
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Tutor ID"
// @Param id path string true "Entry ID"
// @Param payload body service.UpdateEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Router /timesheets/entries/{id} [put]
func (h *TimesheetHandler) UpdateEntry(c *gin.Context) {
	tutorID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.timesheets.UpdateEntryByTutor(c.Request.Context(), tutorID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// DeleteEntry godoc
// @Summary Delete a logged session
// @Tags Timesheets
// @Produce json
// @Param X-Actor-ID header string true "Tutor ID"
// @Param id path string true "Entry ID"
// @Success 204 "No Content"
// @Router /timesheets/entries/{id} [delete]
func (h *TimesheetHandler) DeleteEntry(c *gin.Context) {
	tutorID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.timesheets.DeleteEntry(c.Request.Context(), tutorID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit a timesheet for review
// @Tags Timesheets
// @Produce json
// @Param X-Actor-ID header string true "Tutor ID"
// @Param id path string true "Timesheet ID"
// @Success 200 {object} response.Envelope
// @Router /timesheets/{id}/submit [post]
func (h *TimesheetHandler) Submit(c *gin.Context) {
	tutorID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	sheet, err := h.timesheets.Submit(c.Request.Context(), tutorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// Review godoc
// @Summary Approve or reject a submitted timesheet
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Reviewer ID"
// @Param id path string true "Timesheet ID"
// @Param payload body service.ReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /timesheets/{id}/review [post]
func (h *TimesheetHandler) Review(c *gin.Context) {
	reviewerID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.timesheets.Review(c.Request.Context(), reviewerID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get a timesheet with its entries
// @Tags Timesheets
// @Produce json
// @Param id path string true "Timesheet ID"
// @Success 200 {object} response.Envelope
// @Router /timesheets/{id} [get]
func (h *TimesheetHandler) Get(c *gin.Context) {
	detail, err := h.timesheets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Totals godoc
// @Summary Get a timesheet's aggregate hours and amounts
// @Tags Timesheets
// @Produce json
// @Param id path string true "Timesheet ID"
// @Success 200 {object} response.Envelope
// @Router /timesheets/{id}/totals [get]
func (h *TimesheetHandler) Totals(c *gin.Context) {
	totals, err := h.timesheets.Totals(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, totals, nil)
}

// History godoc
// @Summary Get a timesheet's status audit trail
// @Tags Timesheets
// @Produce json
// @Param id path string true "Timesheet ID"
// @Success 200 {object} response.Envelope
// @Router /timesheets/{id}/history [get]
func (h *TimesheetHandler) History(c *gin.Context) {
	history, err := h.timesheets.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// List godoc
// @Summary List timesheets
// @Tags Timesheets
// @Produce json
// @Param tutorId query string false "Filter by tutor"
// @Param status query string false "Filter by status"
// @Param weekStart query string false "Filter by week start (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timesheets [get]
func (h *TimesheetHandler) List(c *gin.Context) {
	var filter models.TimesheetFilter
	filter.TutorID = c.Query("tutorId")
	filter.Status = models.TimesheetStatus(c.Query("status"))
	if raw := c.Query("weekStart"); raw != "" {
		week, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekStart must be YYYY-MM-DD"))
			return
		}
		filter.WeekStart = &week
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	sheets, pagination, err := h.timesheets.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheets, pagination)
}
