package service

import (
	"context"
	"log/slog"

	"marketplace-escrow/internal/model"

	"github.com/shopspring/decimal"
)

// Notifier receives payment transition events after the owning
// transaction commits. Delivery is best-effort and out of band.
type Notifier interface {
	PaymentReceived(ctx context.Context, payment *model.Payment)
	PaymentReleased(ctx context.Context, payment *model.Payment, netAmount decimal.Decimal)
	PaymentRefunded(ctx context.Context, payment *model.Payment)
	DisputeFiled(ctx context.Context, dispute *model.Dispute)
}

type slogNotifier struct {
	log *slog.Logger
}

func NewSlogNotifier(log *slog.Logger) Notifier {
	return &slogNotifier{log: log}
}

func (n *slogNotifier) PaymentReceived(ctx context.Context, payment *model.Payment) {
	n.log.InfoContext(ctx, "notify: payment received in escrow",
		"payment_id", payment.ID,
		"buyer_id", payment.BuyerID,
		"seller_id", payment.SellerID,
		"amount", payment.Amount.String(),
	)
}

func (n *slogNotifier) PaymentReleased(ctx context.Context, payment *model.Payment, netAmount decimal.Decimal) {
	n.log.InfoContext(ctx, "notify: escrow released to seller",
		"payment_id", payment.ID,
		"seller_id", payment.SellerID,
		"buyer_id", payment.BuyerID,
		"net_amount", netAmount.String(),
	)
}

func (n *slogNotifier) PaymentRefunded(ctx context.Context, payment *model.Payment) {
	n.log.InfoContext(ctx, "notify: escrow refunded to buyer",
		"payment_id", payment.ID,
		"buyer_id", payment.BuyerID,
		"seller_id", payment.SellerID,
		"amount", payment.Amount.String(),
	)
}

func (n *slogNotifier) DisputeFiled(ctx context.Context, dispute *model.Dispute) {
	n.log.InfoContext(ctx, "notify: dispute filed",
		"dispute_id", dispute.ID,
		"payment_id", dispute.PaymentID,
		"filed_by", dispute.FiledBy,
		"reason", dispute.Reason,
	)
}
