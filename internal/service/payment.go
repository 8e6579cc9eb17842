package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"marketplace-escrow/internal/apperr"
	"marketplace-escrow/internal/client"
	"marketplace-escrow/internal/model"
	"marketplace-escrow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReleaseResult reports a completed release of held funds to a seller.
type ReleaseResult struct {
	PaymentID string
	SellerID  string
	ItemID    string
	NetAmount decimal.Decimal
	Fee       decimal.Decimal
}

// PaymentService owns the payment lifecycle: creation at checkout,
// confirmation from the gateway webhook, the normal (buyer-confirmed)
// release path, and expiry of abandoned checkouts. Status is only ever
// moved through the guarded repository transitions.
type PaymentService interface {
	CreatePayment(ctx context.Context, itemID, buyerID, sellerID string, amount decimal.Decimal) (*model.Payment, error)
	ConfirmPaymentReceived(ctx context.Context, paymentID, gatewayRef string) (*model.Payment, error)
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
	ConfirmReceipt(ctx context.Context, paymentID, buyerID string) (*ReleaseResult, error)
	// ReleaseEscrow is the single release routine: guarded transition,
	// fee split, earning creation, ledger credits, item marked sold and
	// any open dispute resolved, in one transaction. Callers are
	// responsible for authorization.
	ReleaseEscrow(ctx context.Context, paymentID, resolutionNotes string) (*ReleaseResult, error)
	ExpireStaleInitiated(ctx context.Context) (int64, error)
}

type paymentServiceImpl struct {
	db             *gorm.DB
	log            *slog.Logger
	paystackClient client.PaystackClient
	feeService     FeeService
	notifier       Notifier
	paymentRepo    repository.PaymentRepository
	itemRepo       repository.ItemRepository
	earningRepo    repository.EarningRepository
	ledgerRepo     repository.LedgerRepository
	disputeRepo    repository.DisputeRepository
	webhookRepo    repository.WebhookEventRepository
	currency       string
	initiatedTTL   time.Duration
}

func NewPaymentService(
	db *gorm.DB,
	log *slog.Logger,
	paystackClient client.PaystackClient,
	feeService FeeService,
	notifier Notifier,
	paymentRepo repository.PaymentRepository,
	itemRepo repository.ItemRepository,
	earningRepo repository.EarningRepository,
	ledgerRepo repository.LedgerRepository,
	disputeRepo repository.DisputeRepository,
	webhookRepo repository.WebhookEventRepository,
	currency string,
	initiatedTTL time.Duration,
) PaymentService {
	return &paymentServiceImpl{
		db:             db,
		log:            log,
		paystackClient: paystackClient,
		feeService:     feeService,
		notifier:       notifier,
		paymentRepo:    paymentRepo,
		itemRepo:       itemRepo,
		earningRepo:    earningRepo,
		ledgerRepo:     ledgerRepo,
		disputeRepo:    disputeRepo,
		webhookRepo:    webhookRepo,
		currency:       currency,
		initiatedTTL:   initiatedTTL,
	}
}

func (s *paymentServiceImpl) CreatePayment(ctx context.Context, itemID, buyerID, sellerID string, amount decimal.Decimal) (*model.Payment, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validationf("amount must be positive")
	}
	if itemID == "" || buyerID == "" || sellerID == "" {
		return nil, apperr.Validationf("item, buyer and seller are required")
	}
	if buyerID == sellerID {
		return nil, apperr.Validationf("buyer and seller cannot be the same user")
	}

	item, err := s.itemRepo.FindByID(ctx, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("item %s not found", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("find item: %w", err)
	}
	if item.SellerID != sellerID {
		return nil, apperr.Validationf("seller does not own item %s", itemID)
	}
	if item.Status != model.ItemStatusAvailable || item.Quantity <= 0 {
		return nil, apperr.Conflictf("item %s is not available", itemID)
	}

	payment := &model.Payment{
		ID:       uuid.NewString(),
		ItemID:   itemID,
		BuyerID:  buyerID,
		SellerID: sellerID,
		Amount:   amount.Round(2),
		Currency: s.currency,
		Status:   model.PaymentStatusInitiated,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.paymentRepo.Create(ctx, tx, payment)
	})
	if err != nil {
		return nil, fmt.Errorf("store payment: %w", err)
	}

	return payment, nil
}

func (s *paymentServiceImpl) ConfirmPaymentReceived(ctx context.Context, paymentID, gatewayRef string) (*model.Payment, error) {
	if _, err := s.paymentRepo.FindByID(ctx, paymentID); errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("payment %s not found", paymentID)
	} else if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.paymentRepo.MarkPaid(ctx, tx, paymentID, gatewayRef)
		if err != nil {
			return fmt.Errorf("mark payment paid: %w", err)
		}
		if rows == 0 {
			return apperr.Conflictf("payment %s is not awaiting confirmation", paymentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("reload payment: %w", err)
	}

	s.notifier.PaymentReceived(ctx, payment)
	return payment, nil
}

// paystackEvent is the subset of the webhook payload this core reads.
type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if err := s.paystackClient.VerifyWebhookSignature(headers, body); err != nil {
		return apperr.Forbiddenf("verify webhook signature: %v", err)
	}

	var event paystackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Validationf("decode webhook payload: %v", err)
	}
	if event.Data.Reference == "" {
		return apperr.Validationf("webhook payload missing reference")
	}

	eventID := fmt.Sprintf("%s:%d", event.Event, event.Data.ID)

	switch event.Event {
	case "charge.success":
		return s.handleChargeSuccess(ctx, eventID, &event)
	case "charge.failed":
		return s.handleChargeFailed(ctx, eventID, &event)
	default:
		s.log.DebugContext(ctx, "ignoring webhook event", "event", event.Event)
		return nil
	}
}

// handleChargeSuccess consumes the event id and moves the payment in
// one transaction: a transient failure rolls both back, so the next
// Paystack redelivery retries the transition instead of hitting an
// already-consumed event id.
func (s *paymentServiceImpl) handleChargeSuccess(ctx context.Context, eventID string, event *paystackEvent) error {
	gatewayRef := fmt.Sprintf("%d", event.Data.ID)

	confirmed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh, err := s.webhookRepo.MarkProcessed(ctx, tx, eventID, event.Event)
		if err != nil {
			return fmt.Errorf("record webhook event: %w", err)
		}
		if !fresh {
			return nil // delivery retry
		}
		// Zero rows means the payment is unknown or already past
		// initiated; either way the event is consumed and absorbed.
		rows, err := s.paymentRepo.MarkPaid(ctx, tx, event.Data.Reference, gatewayRef)
		if err != nil {
			return fmt.Errorf("mark payment paid: %w", err)
		}
		confirmed = rows > 0
		return nil
	})
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	payment, err := s.paymentRepo.FindByID(ctx, event.Data.Reference)
	if err != nil {
		return fmt.Errorf("reload payment: %w", err)
	}
	s.notifier.PaymentReceived(ctx, payment)
	return nil
}

func (s *paymentServiceImpl) handleChargeFailed(ctx context.Context, eventID string, event *paystackEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh, err := s.webhookRepo.MarkProcessed(ctx, tx, eventID, event.Event)
		if err != nil || !fresh {
			return err
		}
		_, err = s.paymentRepo.MarkFailed(ctx, tx, event.Data.Reference)
		return err
	})
}

// ConfirmReceipt is the happy path: the buyer confirms delivery and the
// held funds release to the seller. While a dispute is open only an
// admin resolution may move the payment.
func (s *paymentServiceImpl) ConfirmReceipt(ctx context.Context, paymentID, buyerID string) (*ReleaseResult, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("payment %s not found", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}

	if payment.BuyerID != buyerID {
		return nil, apperr.Forbiddenf("only the buyer can confirm receipt")
	}
	if payment.IsDisputed {
		return nil, apperr.Conflictf("payment %s is under dispute", paymentID)
	}

	return s.release(ctx, paymentID, "buyer confirmed receipt", true)
}

func (s *paymentServiceImpl) ReleaseEscrow(ctx context.Context, paymentID, resolutionNotes string) (*ReleaseResult, error) {
	return s.release(ctx, paymentID, resolutionNotes, false)
}

// release is the one routine that moves held funds to the seller. The
// buyer path (onlyUndisputed) refuses inside the transaction once a
// dispute flag is set; the admin path releases regardless and closes
// the dispute.
func (s *paymentServiceImpl) release(ctx context.Context, paymentID, resolutionNotes string, onlyUndisputed bool) (*ReleaseResult, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("payment %s not found", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}

	fee, net, err := s.feeService.Compute(ctx, payment.Amount)
	if err != nil {
		return nil, fmt.Errorf("compute fee: %w", err)
	}

	var result *ReleaseResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows int64
		var err error
		if onlyUndisputed {
			rows, err = s.paymentRepo.MarkReleasedUndisputed(ctx, tx, paymentID)
		} else {
			rows, err = s.paymentRepo.MarkReleased(ctx, tx, paymentID)
		}
		if err != nil {
			return fmt.Errorf("mark payment released: %w", err)
		}
		if rows == 0 {
			if onlyUndisputed {
				return apperr.Conflictf("payment %s already resolved or under dispute", paymentID)
			}
			return apperr.Conflictf("payment %s already resolved", paymentID)
		}

		earning := &model.Earning{
			ID:               uuid.NewString(),
			UserID:           payment.SellerID,
			Amount:           net,
			Currency:         payment.Currency,
			RelatedPaymentID: payment.ID,
			RelatedItemID:    payment.ItemID,
			Status:           model.EarningStatusAvailable,
		}
		if err := s.earningRepo.Create(ctx, tx, earning); err != nil {
			return fmt.Errorf("create earning: %w", err)
		}

		if err := s.ledgerRepo.CreditUser(ctx, tx, payment.SellerID, net); err != nil {
			return fmt.Errorf("credit seller balance: %w", err)
		}
		if err := s.ledgerRepo.CreditFeePool(ctx, tx, fee); err != nil {
			return fmt.Errorf("credit fee pool: %w", err)
		}

		if err := s.itemRepo.MarkSold(ctx, tx, payment.ItemID); err != nil {
			return fmt.Errorf("mark item sold: %w", err)
		}

		if err := s.disputeRepo.ResolveOpenForPayment(ctx, tx, paymentID, model.DisputeStatusResolvedRelease, resolutionNotes); err != nil {
			return fmt.Errorf("resolve open dispute: %w", err)
		}

		result = &ReleaseResult{
			PaymentID: payment.ID,
			SellerID:  payment.SellerID,
			ItemID:    payment.ItemID,
			NetAmount: net,
			Fee:       fee,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.PaymentReleased(ctx, payment, result.NetAmount)
	return result, nil
}

// ExpireStaleInitiated cancels checkouts that never completed external
// payment. Run periodically by the sweeper in main.
func (s *paymentServiceImpl) ExpireStaleInitiated(ctx context.Context) (int64, error) {
	var expired int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		expired, err = s.paymentRepo.CancelStaleInitiated(ctx, tx, time.Now().Add(-s.initiatedTTL))
		return err
	})
	return expired, err
}
