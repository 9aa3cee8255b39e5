package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarfund-api/internal/service"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
	"github.com/noah-isme/scholarfund-api/pkg/response"
)

// PaymentHandler exposes payment recording and audit endpoints.
type PaymentHandler struct {
	payments        *service.PaymentService
	receiptsEnabled bool
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, receiptsEnabled bool) *PaymentHandler {
	return &PaymentHandler{payments: payments, receiptsEnabled: receiptsEnabled}
}

// Create records one payment increment against a sponsorship.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	transaction, err := h.payments.RecordPayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, transaction)
}

// ListTransactions returns a sponsorship's payment history.
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	transactions, err := h.payments.ListTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transactions, nil)
}

// ExportHistory streams the payment history as CSV.
func (h *PaymentHandler) ExportHistory(c *gin.Context) {
	data, err := h.payments.ExportHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("attachment; filename=transactions-%s.csv", c.Param("id"))
	c.Header("Content-Disposition", filename)
	c.Data(http.StatusOK, "text/csv", data)
}

// Receipt streams a PDF receipt for one transaction.
func (h *PaymentHandler) Receipt(c *gin.Context) {
	if !h.receiptsEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "receipts disabled"))
		return
	}
	data, err := h.payments.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("attachment; filename=receipt-%s.pdf", c.Param("id"))
	c.Header("Content-Disposition", filename)
	c.Data(http.StatusOK, "application/pdf", data)
}
