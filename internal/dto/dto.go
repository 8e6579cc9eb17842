package dto

import "github.com/shopspring/decimal"

type CreatePaymentRequest struct {
	ItemID   string          `json:"item_id"`
	SellerID string          `json:"seller_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type PaymentResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type FileDisputeRequest struct {
	PaymentID   string `json:"payment_id"`
	ItemID      string `json:"item_id"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

type DisputeResponse struct {
	DisputeID string `json:"dispute_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

type RefundRequest struct {
	DisputeID string `json:"dispute_id"`
	Notes     string `json:"notes"`
}

type ReleaseResponse struct {
	PaymentID string `json:"payment_id"`
	SellerID  string `json:"seller_id"`
	ItemID    string `json:"item_id"`
	NetAmount string `json:"net_amount"`
}

type RefundResponse struct {
	PaymentID      string `json:"payment_id"`
	BuyerID        string `json:"buyer_id"`
	SellerID       string `json:"seller_id"`
	ItemID         string `json:"item_id"`
	AmountRefunded string `json:"amount_refunded"`
}

type WithdrawalRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PayoutMethod  string          `json:"payout_method"` // mobile_money, bank
	PhoneNumber   string          `json:"phone_number"`
	BankCode      string          `json:"bank_code"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name"`
}

type WithdrawalResponse struct {
	WithdrawalID string `json:"withdrawal_id"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
}
