package handler

import (
	"net/http"

	"marketplace-escrow/internal/dto"
	"marketplace-escrow/internal/middleware"
	"marketplace-escrow/internal/service"

	"github.com/labstack/echo/v4"
)

type WithdrawalHandler struct {
	withdrawalService service.WithdrawalService
}

func NewWithdrawalHandler(withdrawalService service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: withdrawalService}
}

func (h *WithdrawalHandler) RequestWithdrawal(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.WithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	w, err := h.withdrawalService.RequestSellerWithdrawal(ctx, middleware.UserID(c), req.Amount, req.PayoutMethod, service.PayoutDestination{
		PhoneNumber:   req.PhoneNumber,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusAccepted, &dto.WithdrawalResponse{
		WithdrawalID: w.ID,
		Status:       w.Status,
		Amount:       w.Amount.StringFixed(2),
		Currency:     w.Currency,
	})
}
