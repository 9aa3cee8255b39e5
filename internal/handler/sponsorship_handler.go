package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarfund-api/internal/service"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
	"github.com/noah-isme/scholarfund-api/pkg/response"
)

// SponsorshipHandler exposes donor commitment endpoints.
type SponsorshipHandler struct {
	sponsorships *service.SponsorshipService
}

// NewSponsorshipHandler constructs SponsorshipHandler.
func NewSponsorshipHandler(sponsorships *service.SponsorshipService) *SponsorshipHandler {
	return &SponsorshipHandler{sponsorships: sponsorships}
}

// Create commits the donor to an approved case.
func (h *SponsorshipHandler) Create(c *gin.Context) {
	var req service.SponsorCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sponsorship, err := h.sponsorships.Sponsor(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sponsorship)
}

// List returns sponsorships, filtered by donor or case.
func (h *SponsorshipHandler) List(c *gin.Context) {
	if caseID := c.Query("case"); caseID != "" {
		sponsorship, err := h.sponsorships.GetByCase(c.Request.Context(), caseID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, sponsorship, nil)
		return
	}
	sponsorships, err := h.sponsorships.ListByDonor(c.Request.Context(), c.Query("donor"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sponsorships, nil)
}
