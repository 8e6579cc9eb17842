package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"marketplace-escrow/internal/apperr"
	"marketplace-escrow/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestCreatePayment_StartsInitiated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedUser(t, "seller-1", model.RoleUser, 0)
	env.seedItem(t, "item-1", "seller-1", 1000)

	payment, err := env.payments.CreatePayment(ctx, "item-1", "buyer-1", "seller-1", decimal.RequireFromString("1000"))
	if err != nil {
		t.Fatalf("CreatePayment error: %v", err)
	}
	if payment.Status != model.PaymentStatusInitiated {
		t.Fatalf("status = %s, want %s", payment.Status, model.PaymentStatusInitiated)
	}
	mustEqual(t, payment.Amount, "1000", "amount")
}

func TestCreatePayment_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedItem(t, "item-1", "seller-1", 1000)

	_, err := env.payments.CreatePayment(ctx, "item-1", "buyer-1", "seller-1", decimal.Zero)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("zero amount: expected validation error, got %v", err)
	}

	_, err = env.payments.CreatePayment(ctx, "item-1", "seller-1", "seller-1", decimal.RequireFromString("10"))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("self purchase: expected validation error, got %v", err)
	}

	_, err = env.payments.CreatePayment(ctx, "missing-item", "buyer-1", "seller-1", decimal.RequireFromString("10"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing item: expected not found, got %v", err)
	}

	// the claimed seller must actually own the item, or the release
	// would credit the wrong user
	_, err = env.payments.CreatePayment(ctx, "item-1", "buyer-1", "seller-2", decimal.RequireFromString("10"))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("wrong seller: expected validation error, got %v", err)
	}
}

func TestConfirmPaymentReceived_MovesToPaidOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedItem(t, "item-1", "seller-1", 1000)

	created, err := env.payments.CreatePayment(ctx, "item-1", "buyer-1", "seller-1", decimal.RequireFromString("1000"))
	if err != nil {
		t.Fatalf("CreatePayment error: %v", err)
	}

	payment, err := env.payments.ConfirmPaymentReceived(ctx, created.ID, "gw-123")
	if err != nil {
		t.Fatalf("ConfirmPaymentReceived error: %v", err)
	}
	if payment.Status != model.PaymentStatusPaid {
		t.Fatalf("status = %s, want %s", payment.Status, model.PaymentStatusPaid)
	}
	if payment.GatewayReference != "gw-123" {
		t.Fatalf("gateway reference = %s", payment.GatewayReference)
	}
	if payment.PaidAt == nil {
		t.Fatal("paid_at not stamped")
	}

	// second confirmation is a conflict, not a silent no-op
	if _, err := env.payments.ConfirmPaymentReceived(ctx, created.ID, "gw-456"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := env.payments.ConfirmPaymentReceived(ctx, "nope", "gw-789"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHandleWebhook_ChargeSuccessIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedItem(t, "item-1", "seller-1", 1000)

	created, err := env.payments.CreatePayment(ctx, "item-1", "buyer-1", "seller-1", decimal.RequireFromString("1000"))
	if err != nil {
		t.Fatalf("CreatePayment error: %v", err)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data": map[string]interface{}{
			"id":        987654,
			"reference": created.ID,
			"status":    "success",
		},
	})

	if err := env.payments.HandleWebhook(ctx, http.Header{}, body); err != nil {
		t.Fatalf("HandleWebhook error: %v", err)
	}
	if got := env.payment(t, created.ID); got.Status != model.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid", got.Status)
	}

	// redelivery of the same event is absorbed
	if err := env.payments.HandleWebhook(ctx, http.Header{}, body); err != nil {
		t.Fatalf("HandleWebhook redelivery error: %v", err)
	}
}

func TestHandleWebhook_FailedDeliveryStaysRetryable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedItem(t, "item-1", "seller-1", 1000)

	created, err := env.payments.CreatePayment(ctx, "item-1", "buyer-1", "seller-1", decimal.RequireFromString("1000"))
	if err != nil {
		t.Fatalf("CreatePayment error: %v", err)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data": map[string]interface{}{
			"id":        555111,
			"reference": created.ID,
			"status":    "success",
		},
	})

	// hide the payments table so the transition fails mid-transaction
	if err := env.db.Exec("ALTER TABLE payments RENAME TO payments_hidden").Error; err != nil {
		t.Fatalf("hide payments table: %v", err)
	}
	if err := env.payments.HandleWebhook(ctx, http.Header{}, body); err == nil {
		t.Fatal("expected delivery to fail while payments table is gone")
	}
	if err := env.db.Exec("ALTER TABLE payments_hidden RENAME TO payments").Error; err != nil {
		t.Fatalf("restore payments table: %v", err)
	}

	// the failed delivery must not have consumed the event id
	var consumed int64
	if err := env.db.Table("webhook_events").Count(&consumed).Error; err != nil {
		t.Fatalf("count webhook events: %v", err)
	}
	if consumed != 0 {
		t.Fatalf("webhook events consumed = %d, want 0 after rollback", consumed)
	}

	// redelivery now completes the transition
	if err := env.payments.HandleWebhook(ctx, http.Header{}, body); err != nil {
		t.Fatalf("HandleWebhook redelivery error: %v", err)
	}
	if got := env.payment(t, created.ID); got.Status != model.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid after redelivery", got.Status)
	}
}

func TestConfirmReceipt_ReleasesToSeller(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedUser(t, "seller-1", model.RoleUser, 0)
	env.seedItem(t, "item-1", "seller-1", 1000)
	env.seedPaidPayment(t, "pay-1", "item-1", "buyer-1", "seller-1", 1000, time.Hour)

	result, err := env.payments.ConfirmReceipt(ctx, "pay-1", "buyer-1")
	if err != nil {
		t.Fatalf("ConfirmReceipt error: %v", err)
	}
	mustEqual(t, result.NetAmount, "900", "net amount")
	mustEqual(t, env.balance(t, "seller-1"), "900", "seller balance")
	mustEqual(t, env.feePool(t), "100", "fee pool")

	if got := env.payment(t, "pay-1"); got.Status != model.PaymentStatusReleased {
		t.Fatalf("status = %s, want released", got.Status)
	}
}

func TestConfirmReceipt_OnlyBuyerAndOnlyUndisputed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedUser(t, "seller-1", model.RoleUser, 0)
	env.seedItem(t, "item-1", "seller-1", 1000)
	env.seedPaidPayment(t, "pay-1", "item-1", "buyer-1", "seller-1", 1000, time.Hour)

	if _, err := env.payments.ConfirmReceipt(ctx, "pay-1", "seller-1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if _, err := env.disputes.FileDispute(ctx, "pay-1", "item-1", "buyer-1", "not as described", ""); err != nil {
		t.Fatalf("FileDispute error: %v", err)
	}
	if _, err := env.payments.ConfirmReceipt(ctx, "pay-1", "buyer-1"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict while disputed, got %v", err)
	}
}

// A dispute filed between the buyer's eligibility read and the release
// transaction must win: the buyer transition carries the dispute flag
// in its guard, the admin transition does not.
func TestReleaseTransition_DisputeFlagBlocksBuyerVariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedPaidPayment(t, "pay-1", "item-1", "buyer-1", "seller-1", 1000, time.Hour)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		rows, err := env.paymentRepo.FlagDisputed(ctx, tx, "pay-1", "d-1", "not as described")
		if err != nil {
			return err
		}
		if rows != 1 {
			t.Errorf("FlagDisputed rows = %d, want 1", rows)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("flag disputed: %v", err)
	}

	err = env.db.Transaction(func(tx *gorm.DB) error {
		rows, err := env.paymentRepo.MarkReleasedUndisputed(ctx, tx, "pay-1")
		if err != nil {
			return err
		}
		if rows != 0 {
			t.Errorf("buyer release of disputed payment: rows = %d, want 0", rows)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("buyer release attempt: %v", err)
	}
	if got := env.payment(t, "pay-1"); got.Status != model.PaymentStatusPaid || !got.IsDisputed {
		t.Fatalf("payment = %s/disputed=%v, want held and disputed", got.Status, got.IsDisputed)
	}

	// the admin transition still resolves it
	err = env.db.Transaction(func(tx *gorm.DB) error {
		rows, err := env.paymentRepo.MarkReleased(ctx, tx, "pay-1")
		if err != nil {
			return err
		}
		if rows != 1 {
			t.Errorf("admin release rows = %d, want 1", rows)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("admin release: %v", err)
	}
}

func TestExpireStaleInitiated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	stale := &model.Payment{
		ID: "pay-old", ItemID: "item-1", BuyerID: "b", SellerID: "s",
		Amount: decimal.RequireFromString("10"), Currency: "KES",
		Status: model.PaymentStatusInitiated, CreatedAt: old,
	}
	if err := env.db.Create(stale).Error; err != nil {
		t.Fatalf("seed stale payment: %v", err)
	}

	expired, err := env.payments.ExpireStaleInitiated(ctx)
	if err != nil {
		t.Fatalf("ExpireStaleInitiated error: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}
	if got := env.payment(t, "pay-old"); got.Status != model.PaymentStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
}
