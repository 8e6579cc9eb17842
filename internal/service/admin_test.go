package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace-escrow/internal/apperr"
	"marketplace-escrow/internal/model"
)

func TestAdminRelease_Bookkeeping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "admin-1", model.RoleAdmin, 0)
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedUser(t, "seller-1", model.RoleUser, 0)
	env.seedItem(t, "item-1", "seller-1", 1000)
	env.seedPaidPayment(t, "pay-1", "item-1", "buyer-1", "seller-1", 1000, 8*24*time.Hour)
	env.seedFeeRule(t, 0, nil, 10, 1)

	result, err := env.admin.Release(ctx, "pay-1", "admin-1")
	if err != nil {
		t.Fatalf("Release error: %v", err)
	}

	mustEqual(t, result.NetAmount, "900", "earning amount")
	mustEqual(t, env.balance(t, "seller-1"), "900", "seller balance")
	mustEqual(t, env.feePool(t), "100", "fee pool")

	var earning model.Earning
	if err := env.db.Where("related_payment_id = ?", "pay-1").First(&earning).Error; err != nil {
		t.Fatalf("load earning: %v", err)
	}
	mustEqual(t, earning.Amount, "900", "earning amount")
	if earning.Status != model.EarningStatusAvailable {
		t.Fatalf("earning status = %s, want available", earning.Status)
	}

	if got := env.item(t, "item-1"); got.Status != model.ItemStatusSold {
		t.Fatalf("item status = %s, want sold", got.Status)
	}
	if got := env.payment(t, "pay-1"); got.Status != model.PaymentStatusReleased {
		t.Fatalf("payment status = %s, want released", got.Status)
	}
}

func TestAdminRelease_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "user-1", model.RoleUser, 0)
	env.seedPaidPayment(t, "pay-1", "item-1", "buyer-1", "seller-1", 100, time.Hour)

	if _, err := env.admin.Release(ctx, "pay-1", "user-1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-admin: expected forbidden, got %v", err)
	}
	if _, err := env.admin.Release(ctx, "pay-1", "ghost"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("unknown caller: expected forbidden, got %v", err)
	}
}

func TestAdminRefund_Bookkeeping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "admin-1", model.RoleAdmin, 0)
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedUser(t, "seller-1", model.RoleUser, 0)
	env.seedItem(t, "item-1", "seller-1", 1000)
	env.seedPaidPayment(t, "pay-1", "item-1", "buyer-1", "seller-1", 1000, time.Hour)

	dispute, err := env.disputes.FileDispute(ctx, "pay-1", "item-1", "buyer-1", "damaged", "")
	if err != nil {
		t.Fatalf("FileDispute error: %v", err)
	}

	result, err := env.admin.Refund(ctx, "pay-1", "admin-1", dispute.ID, "seller at fault")
	if err != nil {
		t.Fatalf("Refund error: %v", err)
	}

	// buyer gets the full gross amount, not net
	mustEqual(t, result.AmountRefunded, "1000", "amount refunded")
	mustEqual(t, env.balance(t, "buyer-1"), "1000", "buyer balance")
	mustEqual(t, env.balance(t, "seller-1"), "0", "seller balance untouched")
	mustEqual(t, env.feePool(t), "0", "fee pool untouched")

	item := env.item(t, "item-1")
	if item.Status != model.ItemStatusAvailable {
		t.Fatalf("item status = %s, want available", item.Status)
	}
	if item.Quantity != 2 {
		t.Fatalf("item quantity = %d, want 2 (restocked)", item.Quantity)
	}

	payment := env.payment(t, "pay-1")
	if payment.Status != model.PaymentStatusRefunded {
		t.Fatalf("payment status = %s, want refunded", payment.Status)
	}
	if payment.IsDisputed {
		t.Fatal("dispute flag not cleared")
	}

	resolved, err := env.disputeRepo.FindByID(ctx, dispute.ID)
	if err != nil {
		t.Fatalf("load dispute: %v", err)
	}
	if resolved.Status != model.DisputeStatusResolvedRefund {
		t.Fatalf("dispute status = %s, want resolved_refund", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Fatal("resolved_at not stamped")
	}
	if resolved.ResolutionNotes != "seller at fault" {
		t.Fatalf("resolution notes = %q", resolved.ResolutionNotes)
	}
}

func TestAdminRefund_MissingItemIsFine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "admin-1", model.RoleAdmin, 0)
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedPaidPayment(t, "pay-1", "item-gone", "buyer-1", "seller-1", 250, time.Hour)

	if _, err := env.admin.Refund(ctx, "pay-1", "admin-1", "", ""); err != nil {
		t.Fatalf("Refund with deleted item error: %v", err)
	}
	mustEqual(t, env.balance(t, "buyer-1"), "250", "buyer balance")
}

func TestResolution_NoDoubleResolution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "admin-1", model.RoleAdmin, 0)
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedUser(t, "seller-1", model.RoleUser, 0)
	env.seedItem(t, "item-1", "seller-1", 1000)
	env.seedPaidPayment(t, "pay-1", "item-1", "buyer-1", "seller-1", 1000, time.Hour)

	if _, err := env.admin.Release(ctx, "pay-1", "admin-1"); err != nil {
		t.Fatalf("first Release error: %v", err)
	}

	if _, err := env.admin.Release(ctx, "pay-1", "admin-1"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second release: expected conflict, got %v", err)
	}
	if _, err := env.admin.Refund(ctx, "pay-1", "admin-1", "", ""); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("refund after release: expected conflict, got %v", err)
	}

	// no double credit
	mustEqual(t, env.balance(t, "seller-1"), "900", "seller balance")
	mustEqual(t, env.balance(t, "buyer-1"), "0", "buyer balance")
}

func TestResolution_ConcurrentReleaseAndRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "admin-1", model.RoleAdmin, 0)
	env.seedUser(t, "buyer-1", model.RoleUser, 0)
	env.seedUser(t, "seller-1", model.RoleUser, 0)
	env.seedItem(t, "item-1", "seller-1", 1000)
	env.seedPaidPayment(t, "pay-1", "item-1", "buyer-1", "seller-1", 1000, time.Hour)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := env.admin.Release(ctx, "pay-1", "admin-1")
		results <- err
	}()
	go func() {
		defer wg.Done()
		_, err := env.admin.Refund(ctx, "pay-1", "admin-1", "", "")
		results <- err
	}()
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("successes = %d, conflicts = %d; want exactly one of each", successes, conflicts)
	}

	payment := env.payment(t, "pay-1")
	if payment.Status != model.PaymentStatusReleased && payment.Status != model.PaymentStatusRefunded {
		t.Fatalf("final status = %s", payment.Status)
	}

	// exactly one side of the ledger moved
	sellerCredited := env.balance(t, "seller-1").IsPositive()
	buyerCredited := env.balance(t, "buyer-1").IsPositive()
	if sellerCredited == buyerCredited {
		t.Fatalf("seller credited = %v, buyer credited = %v; exactly one expected", sellerCredited, buyerCredited)
	}
}

func TestAdminRefund_UnknownPaymentAndDispute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "admin-1", model.RoleAdmin, 0)
	env.seedPaidPayment(t, "pay-1", "item-1", "buyer-1", "seller-1", 100, time.Hour)

	if _, err := env.admin.Refund(ctx, "missing", "admin-1", "", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing payment: expected not found, got %v", err)
	}
	if _, err := env.admin.Refund(ctx, "pay-1", "admin-1", "missing-dispute", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing dispute: expected not found, got %v", err)
	}
}
