package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"marketplace-escrow/internal/client"
	"marketplace-escrow/internal/model"
	"marketplace-escrow/internal/repository"
	"marketplace-escrow/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:escrowtest%d?mode=memory&cache=shared&_busy_timeout=5000", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	// single connection keeps sqlite happy under concurrent transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := client.Migrate(db, "KES"); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fakeGateway stands in for Paystack. Failure modes are switchable per
// test; every initiated transfer is recorded.
type fakeGateway struct {
	failRecipient bool
	failTransfer  bool
	transfers     []*client.TransferRequest
}

func (g *fakeGateway) CreateRecipient(ctx context.Context, req *client.RecipientRequest) (string, error) {
	if g.failRecipient {
		return "", fmt.Errorf("gateway says no: recipient rejected")
	}
	return "RCP_test_1", nil
}

func (g *fakeGateway) InitiateTransfer(ctx context.Context, req *client.TransferRequest) (*client.TransferResult, error) {
	if g.failTransfer {
		return nil, fmt.Errorf("gateway says no: transfer rejected")
	}
	g.transfers = append(g.transfers, req)
	return &client.TransferResult{TransferCode: "TRF_test_1", Status: "pending"}, nil
}

func (g *fakeGateway) VerifyWebhookSignature(headers http.Header, body []byte) error {
	return nil
}

type testEnv struct {
	db          *gorm.DB
	gateway     *fakeGateway
	payments    service.PaymentService
	disputes    service.DisputeService
	admin       service.AdminService
	withdrawals service.WithdrawalService

	paymentRepo repository.PaymentRepository
	ledgerRepo  repository.LedgerRepository
	earningRepo repository.EarningRepository
	disputeRepo repository.DisputeRepository
	feeRuleRepo repository.FeeRuleRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	gw := &fakeGateway{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	paymentRepo := repository.NewPaymentRepository(db)
	itemRepo := repository.NewItemRepository(db)
	userRepo := repository.NewUserRepository(db)
	earningRepo := repository.NewEarningRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	disputeRepo := repository.NewDisputeRepository(db)
	feeRuleRepo := repository.NewFeeRuleRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	adminFeeRepo := repository.NewAdminFeeWithdrawalRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)

	notifier := service.NewSlogNotifier(log)
	feeService := service.NewFeeService(feeRuleRepo, 10)

	payments := service.NewPaymentService(
		db, log, gw, feeService, notifier,
		paymentRepo, itemRepo, earningRepo, ledgerRepo, disputeRepo, webhookRepo,
		"KES", 24*time.Hour,
	)
	disputes := service.NewDisputeService(db, notifier, paymentRepo, disputeRepo, 7*24*time.Hour)
	admin := service.NewAdminService(
		db, notifier, payments,
		paymentRepo, itemRepo, ledgerRepo, disputeRepo, userRepo,
		7*24*time.Hour,
	)
	withdrawals := service.NewWithdrawalService(
		db, log, gw,
		ledgerRepo, earningRepo, withdrawalRepo, adminFeeRepo, userRepo,
		"KES", 100,
	)

	return &testEnv{
		db:          db,
		gateway:     gw,
		payments:    payments,
		disputes:    disputes,
		admin:       admin,
		withdrawals: withdrawals,
		paymentRepo: paymentRepo,
		ledgerRepo:  ledgerRepo,
		earningRepo: earningRepo,
		disputeRepo: disputeRepo,
		feeRuleRepo: feeRuleRepo,
	}
}

func (e *testEnv) seedUser(t *testing.T, id, role string, balance float64) {
	t.Helper()
	user := &model.User{
		ID:               id,
		Name:             "Test " + id,
		Email:            id + "@example.com",
		Role:             role,
		AvailableBalance: decimal.NewFromFloat(balance),
	}
	if err := e.db.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func (e *testEnv) seedItem(t *testing.T, id, sellerID string, price float64) {
	t.Helper()
	item := &model.Item{
		ID:       id,
		SellerID: sellerID,
		Title:    "Item " + id,
		Price:    decimal.NewFromFloat(price),
		Currency: "KES",
		Status:   model.ItemStatusAvailable,
		Quantity: 1,
	}
	if err := e.db.Create(item).Error; err != nil {
		t.Fatalf("seed item %s: %v", id, err)
	}
}

// seedPaidPayment writes a payment already confirmed into escrow, with
// paid_at backdated by age.
func (e *testEnv) seedPaidPayment(t *testing.T, id, itemID, buyerID, sellerID string, amount float64, age time.Duration) {
	t.Helper()
	paidAt := time.Now().Add(-age)
	payment := &model.Payment{
		ID:               id,
		ItemID:           itemID,
		BuyerID:          buyerID,
		SellerID:         sellerID,
		Amount:           decimal.NewFromFloat(amount),
		Currency:         "KES",
		Status:           model.PaymentStatusPaid,
		GatewayReference: "gw-" + id,
		PaidAt:           &paidAt,
		CreatedAt:        paidAt,
	}
	if err := e.db.Create(payment).Error; err != nil {
		t.Fatalf("seed payment %s: %v", id, err)
	}
}

func (e *testEnv) seedFeeRule(t *testing.T, min float64, max *float64, pct float64, priority int32) {
	t.Helper()
	rule := &model.FeeRule{
		MinAmount:     decimal.NewFromFloat(min),
		FeePercentage: decimal.NewFromFloat(pct),
		Priority:      priority,
		IsActive:      true,
	}
	if max != nil {
		m := decimal.NewFromFloat(*max)
		rule.MaxAmount = &m
	}
	if err := e.db.Create(rule).Error; err != nil {
		t.Fatalf("seed fee rule: %v", err)
	}
}

func (e *testEnv) payment(t *testing.T, id string) *model.Payment {
	t.Helper()
	p, err := e.paymentRepo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load payment %s: %v", id, err)
	}
	return p
}

func (e *testEnv) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	b, err := e.ledgerRepo.UserBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("load balance %s: %v", userID, err)
	}
	return b
}

func (e *testEnv) feePool(t *testing.T) decimal.Decimal {
	t.Helper()
	p, err := e.ledgerRepo.FeePool(context.Background())
	if err != nil {
		t.Fatalf("load fee pool: %v", err)
	}
	return p
}

func (e *testEnv) item(t *testing.T, id string) *model.Item {
	t.Helper()
	var item model.Item
	if err := e.db.Where("id = ?", id).First(&item).Error; err != nil {
		t.Fatalf("load item %s: %v", id, err)
	}
	return &item
}

func mustEqual(t *testing.T, got decimal.Decimal, want string, what string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", what, got.String(), want)
	}
}
