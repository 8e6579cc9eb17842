package service

import (
	"context"
	"fmt"

	"marketplace-escrow/internal/apperr"
	"marketplace-escrow/internal/repository"

	"github.com/shopspring/decimal"
)

// FeeService maps a gross sale amount to (platform fee, net seller
// amount). Pure read of the rule table plus arithmetic; both results
// are rounded half-up to 2 decimal places and always sum back to the
// gross amount exactly.
type FeeService interface {
	Compute(ctx context.Context, gross decimal.Decimal) (fee, net decimal.Decimal, err error)
}

type feeServiceImpl struct {
	feeRuleRepo repository.FeeRuleRepository
	defaultRate decimal.Decimal // percentage applied when no rule matches
}

func NewFeeService(feeRuleRepo repository.FeeRuleRepository, defaultFeePercent float64) FeeService {
	return &feeServiceImpl{
		feeRuleRepo: feeRuleRepo,
		defaultRate: decimal.NewFromFloat(defaultFeePercent),
	}
}

func (s *feeServiceImpl) Compute(ctx context.Context, gross decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if gross.IsNegative() {
		return decimal.Zero, decimal.Zero, apperr.Validationf("gross amount must not be negative")
	}

	rate := s.defaultRate
	rule, err := s.feeRuleRepo.FindMatch(ctx, gross)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("find matching fee rule: %w", err)
	}
	if rule != nil {
		rate = rule.FeePercentage
	}

	// decimal.Round is half away from zero, i.e. half-up for the
	// non-negative amounts handled here.
	fee := gross.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
	if fee.GreaterThan(gross) {
		fee = gross
	}
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	net := gross.Sub(fee)

	return fee, net, nil
}
