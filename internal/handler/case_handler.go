package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarfund-api/internal/models"
	"github.com/noah-isme/scholarfund-api/internal/service"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
	"github.com/noah-isme/scholarfund-api/pkg/response"
)

// CaseHandler exposes case request and approval endpoints.
type CaseHandler struct {
	cases *service.CaseService
}

// NewCaseHandler constructs CaseHandler.
func NewCaseHandler(cases *service.CaseService) *CaseHandler {
	return &CaseHandler{cases: cases}
}

// Submit files a new help request.
func (h *CaseHandler) Submit(c *gin.Context) {
	var req service.SubmitCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.cases.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// ListPending returns requests awaiting a decision.
func (h *CaseHandler) ListPending(c *gin.Context) {
	requests, err := h.cases.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Approve runs the approval saga for a pending request.
func (h *CaseHandler) Approve(c *gin.Context) {
	var req service.ApproveCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.cases.Approve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject declines a pending request.
func (h *CaseHandler) Reject(c *gin.Context) {
	var req service.RejectCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.cases.Reject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// GetApproved returns one approved case.
func (h *CaseHandler) GetApproved(c *gin.Context) {
	approved, err := h.cases.GetApproved(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approved, nil)
}

// ListApproved returns approved cases with pagination.
func (h *CaseHandler) ListApproved(c *gin.Context) {
	var filter models.CaseFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	cases, pagination, err := h.cases.ListApproved(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cases, pagination)
}
