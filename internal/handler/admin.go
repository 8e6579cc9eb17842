package handler

import (
	"net/http"

	"marketplace-escrow/internal/dto"
	"marketplace-escrow/internal/middleware"
	"marketplace-escrow/internal/service"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	adminService      service.AdminService
	withdrawalService service.WithdrawalService
}

func NewAdminHandler(adminService service.AdminService, withdrawalService service.WithdrawalService) *AdminHandler {
	return &AdminHandler{
		adminService:      adminService,
		withdrawalService: withdrawalService,
	}
}

func (h *AdminHandler) ReleasePayment(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.adminService.Release(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, &dto.ReleaseResponse{
		PaymentID: result.PaymentID,
		SellerID:  result.SellerID,
		ItemID:    result.ItemID,
		NetAmount: result.NetAmount.StringFixed(2),
	})
}

func (h *AdminHandler) RefundPayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RefundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.adminService.Refund(ctx, c.Param("id"), middleware.UserID(c), req.DisputeID, req.Notes)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, &dto.RefundResponse{
		PaymentID:      result.PaymentID,
		BuyerID:        result.BuyerID,
		SellerID:       result.SellerID,
		ItemID:         result.ItemID,
		AmountRefunded: result.AmountRefunded.StringFixed(2),
	})
}

func (h *AdminHandler) ListNeedingAttention(c echo.Context) error {
	ctx := c.Request().Context()

	payments, err := h.adminService.ListNeedingAttention(ctx, middleware.UserID(c))
	if err != nil {
		return httpError(err)
	}

	out := make([]*dto.PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = &dto.PaymentResponse{
			PaymentID: p.ID,
			Status:    p.Status,
			Amount:    p.Amount.StringFixed(2),
			Currency:  p.Currency,
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) RequestFeeWithdrawal(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.WithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	w, err := h.withdrawalService.RequestPlatformFeeWithdrawal(ctx, middleware.UserID(c), req.Amount, req.PayoutMethod, service.PayoutDestination{
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
