package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses. Dispute state is the IsDisputed flag plus an open
// Dispute row, never a status value.
const (
	PaymentStatusInitiated = "initiated"
	PaymentStatusPaid      = "paid_to_platform"
	PaymentStatusReleased  = "released_to_seller_balance"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

const (
	DisputeStatusOpen            = "open"
	DisputeStatusResolvedRefund  = "resolved_refund"
	DisputeStatusResolvedRelease = "resolved_release"
)

const (
	EarningStatusAvailable         = "available"
	EarningStatusWithdrawalPending = "withdrawal_pending"
	EarningStatusWithdrawn         = "withdrawn"
)

const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusFailed     = "failed"
)

const (
	ItemStatusAvailable = "available"
	ItemStatusSold      = "sold"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	PayoutMethodMobileMoney = "mobile_money"
	PayoutMethodBank        = "bank"
)

type User struct {
	ID               string          `gorm:"primaryKey;size:64;not null"`
	Name             string          `gorm:"size:128"`
	Email            string          `gorm:"size:128;uniqueIndex"`
	Role             string          `gorm:"size:16;not null;default:user"` // user, admin
	AvailableBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Item struct {
	ID        string          `gorm:"primaryKey;size:64;not null"`
	SellerID  string          `gorm:"size:64;index;not null"`
	Title     string          `gorm:"size:256"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency  string          `gorm:"size:8;not null"`
	Status    string          `gorm:"size:32;index;not null"` // available, sold
	Quantity  int32           `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment is one escrow-held checkout attempt. Amount is the gross sale
// amount in major currency units and is immutable after creation.
type Payment struct {
	ID       string          `gorm:"primaryKey;size:64;not null"`
	ItemID   string          `gorm:"size:64;index;not null"`
	BuyerID  string          `gorm:"size:64;index;not null"`
	SellerID string          `gorm:"size:64;index;not null"`
	Amount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency string          `gorm:"size:8;not null"`
	Status   string          `gorm:"size:32;index;not null"`

	IsDisputed    bool   `gorm:"not null;default:false;index"`
	DisputeID     string `gorm:"size:64"`
	DisputeReason string `gorm:"size:256"`

	// paystack correlation
	GatewayReference string `gorm:"size:128;index"`

	PaidAt     *time.Time
	ReleasedAt *time.Time
	RefundedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Earning is created exactly once per successful release, for the net
// (post-fee) amount. Never deleted, only status-transitioned.
type Earning struct {
	ID               string          `gorm:"primaryKey;size:64;not null"`
	UserID           string          `gorm:"size:64;index;not null"` // seller
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency         string          `gorm:"size:8;not null"`
	RelatedPaymentID string          `gorm:"size:64;uniqueIndex;not null"`
	RelatedItemID    string          `gorm:"size:64;index;not null"`
	Status           string          `gorm:"size:32;index;not null"` // available, withdrawal_pending, withdrawn
	WithdrawalID     string          `gorm:"size:64;index"`          // set while locked by a withdrawal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Dispute struct {
	ID              string `gorm:"primaryKey;size:64;not null"`
	PaymentID       string `gorm:"size:64;index;not null"`
	ItemID          string `gorm:"size:64;index;not null"`
	FiledBy         string `gorm:"size:64;index;not null"` // buyer or seller user id
	Reason          string `gorm:"size:128;not null"`
	Description     string `gorm:"size:1024"`
	Status          string `gorm:"size:32;index;not null"` // open, resolved_refund, resolved_release
	ResolutionNotes string `gorm:"size:1024"`
	SubmittedAt     time.Time
	ResolvedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FeeRule is an ordered pricing policy row. Active rules may overlap;
// highest priority wins, most recently created breaks ties.
type FeeRule struct {
	ID            uint             `gorm:"primaryKey"`
	MinAmount     decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	MaxAmount     *decimal.Decimal `gorm:"type:decimal(12,2)"` // nil = unbounded
	FeePercentage decimal.Decimal  `gorm:"type:decimal(5,2);not null"`
	Priority      int32            `gorm:"not null;default:0;index"`
	IsActive      bool             `gorm:"not null;default:true;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PlatformLedger is a single row (ID 1) holding the accumulated platform
// fee pool. Mutated only via atomic increments inside the transaction
// that triggers the movement.
type PlatformLedger struct {
	ID        uint            `gorm:"primaryKey"`
	FeePool   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Currency  string          `gorm:"size:8;not null"`
	UpdatedAt time.Time
}

// Withdrawal is one seller payout attempt from available balance.
type Withdrawal struct {
	ID            string          `gorm:"primaryKey;size:64;not null"`
	UserID        string          `gorm:"size:64;index;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency      string          `gorm:"size:8;not null"`
	Status        string          `gorm:"size:32;index;not null"` // pending, processing, completed, failed
	PayoutMethod  string          `gorm:"size:32;not null"`       // mobile_money, bank
	PhoneNumber   string          `gorm:"size:32"`
	BankCode      string          `gorm:"size:16"`
	AccountNumber string          `gorm:"size:32"`
	RecipientCode string          `gorm:"size:64"`
	TransferCode  string          `gorm:"size:64"`
	FailureReason string          `gorm:"size:512"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AdminFeeWithdrawal mirrors Withdrawal but draws on the platform fee
// pool instead of a user balance.
type AdminFeeWithdrawal struct {
	ID            string          `gorm:"primaryKey;size:64;not null"`
	AdminID       string          `gorm:"size:64;index;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency      string          `gorm:"size:8;not null"`
	Status        string          `gorm:"size:32;index;not null"`
	PayoutMethod  string          `gorm:"size:32;not null"`
	PhoneNumber   string          `gorm:"size:32"`
	BankCode      string          `gorm:"size:16"`
	AccountNumber string          `gorm:"size:32"`
	RecipientCode string          `gorm:"size:64"`
	TransferCode  string          `gorm:"size:64"`
	FailureReason string          `gorm:"size:512"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WebhookEvent records processed gateway events so webhook delivery
// retries stay idempotent.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
