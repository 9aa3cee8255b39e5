package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarfund-api/internal/service"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
	"github.com/noah-isme/scholarfund-api/pkg/response"
)

// FeeHandler exposes fee ledger endpoints.
type FeeHandler struct {
	fees *service.FeeService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees *service.FeeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// Create appends a fee entry to a student's ledger.
func (h *FeeHandler) Create(c *gin.Context) {
	var req service.AddFeeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.fees.AddEntry(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// List returns a student's fee ledger.
func (h *FeeHandler) List(c *gin.Context) {
	entries, err := h.fees.ListEntries(c.Request.Context(), c.Query("student"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
