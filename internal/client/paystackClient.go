package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"marketplace-escrow/internal/config"
)

// PaystackClient is the narrow surface this core needs from the payout
// gateway. Calls are not transactional: callers must run them after the
// local debit commits and compensate on failure.
type PaystackClient interface {
	CreateRecipient(ctx context.Context, req *RecipientRequest) (string, error)
	InitiateTransfer(ctx context.Context, req *TransferRequest) (*TransferResult, error)
	VerifyWebhookSignature(headers http.Header, body []byte) error
}

type RecipientRequest struct {
	Type          string // mobile_money, nuban
	Name          string
	AccountNumber string // msisdn for mobile money, account number for bank
	BankCode      string
	Currency      string
}

type TransferRequest struct {
	AmountSubunits int64 // smallest currency unit
	RecipientCode  string
	Reference      string
	Reason         string
	Currency       string
}

type TransferResult struct {
	TransferCode string
	Status       string
}

type paystackClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	secretKey  string
}

func NewPaystackClient(cfg *config.Paystack) PaystackClient {
	return &paystackClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL: cfg.BaseApiURL,
		secretKey:  cfg.SecretKey,
	}
}

func (c *paystackClientImpl) CreateRecipient(ctx context.Context, req *RecipientRequest) (string, error) {
	payload := map[string]interface{}{
		"type":           req.Type,
		"name":           req.Name,
		"account_number": req.AccountNumber,
		"bank_code":      req.BankCode,
		"currency":       req.Currency,
	}

	var result struct {
		Status bool `json:"status"`
		Data   struct {
			RecipientCode string `json:"recipient_code"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/transferrecipient", payload, &result); err != nil {
		return "", fmt.Errorf("paystack create recipient: %w", err)
	}
	if !result.Status || result.Data.RecipientCode == "" {
		return "", fmt.Errorf("paystack create recipient: empty recipient code")
	}

	return result.Data.RecipientCode, nil
}

func (c *paystackClientImpl) InitiateTransfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	payload := map[string]interface{}{
		"source":    "balance",
		"amount":    req.AmountSubunits,
		"recipient": req.RecipientCode,
		"reference": req.Reference,
		"reason":    req.Reason,
		"currency":  req.Currency,
	}

	var result struct {
		Status bool `json:"status"`
		Data   struct {
			TransferCode string `json:"transfer_code"`
			Status       string `json:"status"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/transfer", payload, &result); err != nil {
		return nil, fmt.Errorf("paystack initiate transfer: %w", err)
	}
	if !result.Status {
		return nil, fmt.Errorf("paystack initiate transfer: gateway rejected transfer")
	}

	return &TransferResult{
		TransferCode: result.Data.TransferCode,
		Status:       result.Data.Status,
	}, nil
}

// VerifyWebhookSignature checks the x-paystack-signature header: an
// HMAC-SHA512 of the raw body keyed with the secret key.
func (c *paystackClientImpl) VerifyWebhookSignature(headers http.Header, body []byte) error {
	signature := headers.Get("x-paystack-signature")
	if signature == "" {
		return fmt.Errorf("missing x-paystack-signature header")
	}

	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("webhook signature mismatch")
	}
	return nil
}

func (c *paystackClientImpl) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("paystack error %d: %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paystack response: %w", err)
	}
	return nil
}
