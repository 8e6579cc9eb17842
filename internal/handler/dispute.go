package handler

import (
	"net/http"

	"marketplace-escrow/internal/dto"
	"marketplace-escrow/internal/middleware"
	"marketplace-escrow/internal/service"

	"github.com/labstack/echo/v4"
)

type DisputeHandler struct {
	disputeService service.DisputeService
}

func NewDisputeHandler(disputeService service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeService: disputeService}
}

func (h *DisputeHandler) FileDispute(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.FileDisputeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	dispute, err := h.disputeService.FileDispute(ctx, req.PaymentID, req.ItemID, middleware.UserID(c), req.Reason, req.Description)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, &dto.DisputeResponse{
		DisputeID: dispute.ID,
		PaymentID: dispute.PaymentID,
		Status:    dispute.Status,
	})
}
