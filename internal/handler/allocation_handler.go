package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/agency-api/internal/service"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
	"github.com/brightpath/agency-api/pkg/response"
)

// AllocationHandler exposes student-tutor allocation endpoints.
type AllocationHandler struct {
	allocations *service.AllocationService
}

// NewAllocationHandler constructs AllocationHandler.
func NewAllocationHandler(allocations *service.AllocationService) *AllocationHandler {
	return &AllocationHandler{allocations: allocations}
}

// Create godoc
// @Summary Allocate a tutor to a student
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body service.CreateAllocationRequest true "Allocation payload"
// @Success 201 {object} response.Envelope
// @Router /allocations [post]
func (h *AllocationHandler) Create(c *gin.Context) {
	var req service.CreateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	allocation, err := h.allocations.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, allocation)
}

// Delete godoc
// @Summary Remove an allocation
// @Tags Allocations
// @Produce json
// @Param id path string true "Allocation ID"
// @Success 204 "No Content"
// @Router /allocations/{id} [delete]
func (h *AllocationHandler) Delete(c *gin.Context) {
	if err := h.allocations.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
