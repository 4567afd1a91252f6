package interest

import "math"

// LoanAggregate holds the average terms of the loans committed by one country
// with one counterpart in one year.
type LoanAggregate struct {
	CommitmentAmount   float64 `json:"commitment_amount"`
	MaturityYears      float64 `json:"maturity_years"`
	GraceYears         float64 `json:"grace_years"`
	NominalRatePercent float64 `json:"nominal_rate_percent"`
}

// RepaymentYears returns the number of years over which principal is repaid.
// It is negative when the grace period exceeds the maturity.
func (l LoanAggregate) RepaymentYears() float64 {
	return l.MaturityYears - l.GraceYears
}

// Installment returns the principal repaid each year after the grace period,
// or 0 when there are no repayment years.
func (l LoanAggregate) Installment() float64 {
	years := l.RepaymentYears()
	if years <= 0 {
		return 0
	}
	return l.CommitmentAmount / years
}

// PaymentScenario parameterises an expected payments calculation.
type PaymentScenario struct {
	// DiscountRate is a fraction (0.05 = 5%). Zero yields nominal totals.
	DiscountRate float64 `json:"discount_rate"`
	// OverrideRate replaces the nominal rate, in percentage points.
	OverrideRate *float64 `json:"override_rate,omitempty"`
	// RateDelta is added to the (possibly overridden) rate, in percentage points.
	RateDelta *float64 `json:"rate_delta,omitempty"`
}

// WithDiscount returns a copy of the scenario using discount rate d.
func (s PaymentScenario) WithDiscount(d float64) PaymentScenario {
	s.DiscountRate = d
	return s
}

// WithOverride returns a copy of the scenario that replaces the nominal rate.
func (s PaymentScenario) WithOverride(ratePercent float64) PaymentScenario {
	s.OverrideRate = &ratePercent
	return s
}

// WithDelta returns a copy of the scenario that shifts the rate by delta points.
func (s PaymentScenario) WithDelta(delta float64) PaymentScenario {
	s.RateDelta = &delta
	return s
}

// EffectiveRate returns the annual rate, as a fraction, that the scenario
// applies to the loan.
func (s PaymentScenario) EffectiveRate(loan LoanAggregate) float64 {
	rate := loan.NominalRatePercent
	if s.OverrideRate != nil {
		rate = *s.OverrideRate
	}
	if s.RateDelta != nil {
		rate += *s.RateDelta
	}
	if rate == 0 {
		return 0
	}
	return rate / 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
