package server

import (
	"context"

	"marketplace-escrow/internal/handler"
	authmw "marketplace-escrow/internal/middleware"
	"marketplace-escrow/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo              *echo.Echo
	paymentHandler    *handler.PaymentHandler
	disputeHandler    *handler.DisputeHandler
	adminHandler      *handler.AdminHandler
	withdrawalHandler *handler.WithdrawalHandler
	jwtSecret         string
}

func NewServer(
	paymentService service.PaymentService,
	disputeService service.DisputeService,
	adminService service.AdminService,
	withdrawalService service.WithdrawalService,
	jwtSecret string,
) *Server {
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:              e,
		paymentHandler:    handler.NewPaymentHandler(paymentService),
		disputeHandler:    handler.NewDisputeHandler(disputeService),
		adminHandler:      handler.NewAdminHandler(adminService, withdrawalService),
		withdrawalHandler: handler.NewWithdrawalHandler(withdrawalService),
		jwtSecret:         jwtSecret,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- paystack webhooks / callbacks --------
	api.POST("/payments/webhook", s.paymentHandler.PaystackWebhook)

	authed := api.Group("", authmw.AuthMiddleware(s.jwtSecret))
	authed.POST("/payments", s.paymentHandler.CreatePayment)
	authed.POST("/payments/:id/confirm-receipt", s.paymentHandler.ConfirmReceipt)
	authed.POST("/disputes", s.disputeHandler.FileDispute)
	authed.POST("/withdrawals", s.withdrawalHandler.RequestWithdrawal)

	// -------- admin --------
	admin := authed.Group("/admin")
	admin.GET("/payments/attention", s.adminHandler.ListNeedingAttention)
	admin.POST("/payments/:id/release", s.adminHandler.ReleasePayment)
	admin.POST("/payments/:id/refund", s.adminHandler.RefundPayment)
	admin.POST("/fee-withdrawals", s.adminHandler.RequestFeeWithdrawal)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
