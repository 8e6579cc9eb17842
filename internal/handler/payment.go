package handler

import (
	"io"
	"net/http"

	"marketplace-escrow/internal/dto"
	"marketplace-escrow/internal/middleware"
	"marketplace-escrow/internal/service"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	buyerID := middleware.UserID(c)
	payment, err := h.paymentService.CreatePayment(ctx, req.ItemID, buyerID, req.SellerID, req.Amount)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, &dto.PaymentResponse{
		PaymentID: payment.ID,
		Status:    payment.Status,
		Amount:    payment.Amount.StringFixed(2),
		Currency:  payment.Currency,
	})
}

func (h *PaymentHandler) ConfirmReceipt(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.paymentService.ConfirmReceipt(ctx, c.Param("id"), middleware.UserID(c))
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

func (h *PaymentHandler) PaystackWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	if err := h.paymentService.HandleWebhook(ctx, c.Request().Header, body); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusOK)
}
