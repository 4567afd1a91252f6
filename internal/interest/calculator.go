package interest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the number of loans each worker handles in Apply.
const DefaultChunkSize = 512

// Payment is one year of discounted interest.
type Payment struct {
	// Year counts from the first year after commitment.
	Year int `json:"year"`
	// Period is the exponent used to discount the payment. It differs from
	// Year after the grace period when grace is fractional.
	Period     float64 `json:"period"`
	Amount     float64 `json:"amount"`
	Discounted float64 `json:"discounted"`
	InGrace    bool    `json:"in_grace"`
}

// ExpectedPayments returns the present value, at the scenario's discount rate,
// of the interest payments expected on the loan.
//
// Interest accrues on the full commitment for each whole year of grace
// (floor), then on the outstanding balance for ceil(maturity-grace)-1 years
// while principal is repaid in equal installments. Loans whose maturity or
// grace is not finite return NaN.
func ExpectedPayments(loan LoanAggregate, scenario PaymentScenario) float64 {
	if !finite(loan.MaturityYears) || !finite(loan.GraceYears) {
		return math.NaN()
	}

	rate := scenario.EffectiveRate(loan)
	d := scenario.DiscountRate
	repayment := loan.RepaymentYears()
	installment := loan.Installment()

	graceInterest := 0.0
	graceYears := int(math.Floor(loan.GraceYears))
	for y := 1; y <= graceYears; y++ {
		graceInterest += loan.CommitmentAmount * rate / math.Pow(1+d, float64(y))
	}

	afterGrace := 0.0
	repaymentYears := int(math.Ceil(repayment))
	for y := 1; y < repaymentYears; y++ {
		outstanding := loan.CommitmentAmount - float64(y)*installment
		afterGrace += outstanding * rate / math.Pow(1+d, float64(y)+loan.GraceYears)
	}

	return graceInterest + afterGrace
}

// Schedule returns the individual payments that ExpectedPayments sums, grace
// years first.
func Schedule(loan LoanAggregate, scenario PaymentScenario) []Payment {
	if !finite(loan.MaturityYears) || !finite(loan.GraceYears) {
		return nil
	}

	rate := scenario.EffectiveRate(loan)
	d := scenario.DiscountRate
	installment := loan.Installment()

	graceYears := int(math.Floor(loan.GraceYears))
	repaymentYears := int(math.Ceil(loan.RepaymentYears()))

	payments := make([]Payment, 0, max(graceYears, 0)+max(repaymentYears-1, 0))
	for y := 1; y <= graceYears; y++ {
		amount := loan.CommitmentAmount * rate
		payments = append(payments, Payment{
			Year:       y,
			Period:     float64(y),
			Amount:     amount,
			Discounted: amount / math.Pow(1+d, float64(y)),
			InGrace:    true,
		})
	}
	for y := 1; y < repaymentYears; y++ {
		period := float64(y) + loan.GraceYears
		amount := (loan.CommitmentAmount - float64(y)*installment) * rate
		payments = append(payments, Payment{
			Year:       max(graceYears, 0) + y,
			Period:     period,
			Amount:     amount,
			Discounted: amount / math.Pow(1+d, period),
		})
	}
	return payments
}

// Calculator applies ExpectedPayments to batches of loans.
type Calculator struct {
	logger         *slog.Logger
	maxConcurrency int
	chunkSize      int
}

// NewCalculator creates a calculator. A nil logger uses slog.Default().
func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		logger:         logger,
		maxConcurrency: 4,
		chunkSize:      DefaultChunkSize,
	}
}

// SetConcurrency sets the number of workers used by Apply and the number of
// loans each worker takes at a time.
func (c *Calculator) SetConcurrency(workers, chunkSize int) error {
	if workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", workers)
	}
	if chunkSize < 1 {
		return fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	c.maxConcurrency = workers
	c.chunkSize = chunkSize
	return nil
}

// Apply computes the expected payments of every loan under one scenario. The
// result is aligned with loans.
func (c *Calculator) Apply(ctx context.Context, loans []LoanAggregate, scenario PaymentScenario) ([]float64, error) {
	start := time.Now()
	out := make([]float64, len(loans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)

	for lo := 0; lo < len(loans); lo += c.chunkSize {
		lo := lo
		hi := min(lo+c.chunkSize, len(loans))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				out[i] = ExpectedPayments(loans[i], scenario)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("apply expected payments: %w", err)
	}

	c.logger.DebugContext(ctx, "expected payments computed",
		"loans", len(loans),
		"discount_rate", scenario.DiscountRate,
		"duration", time.Since(start),
	)
	return out, nil
}
