// Package interest implements the expected interest payment calculator used by
// the debt pipelines, together with the commitment-weighted aggregation that
// turns per-country loan terms into group averages.
//
// # Calculator
//
// A LoanAggregate describes the average terms of the new loans a country
// committed with one counterpart in one year. ExpectedPayments returns the
// discounted sum of the interest the borrower is expected to pay over the
// life of those loans:
//
//   - during the grace period interest accrues on the full commitment;
//   - after the grace period the principal is repaid in equal installments
//     and interest accrues on the outstanding balance;
//   - every payment is discounted at (1+d)^t, so d = 0 yields nominal totals.
//
// A PaymentScenario lets callers replace the nominal rate, shift it by a
// number of percentage points, or both (replacement first).
//
// # Aggregation
//
// GroupWeights assigns each row its share of the commitments in its group and
// WeightedAverages reduces rows to one weighted rate, maturity and grace per
// group. Groups whose commitments sum to zero get NaN weights; the NaN is
// propagated to the averages rather than trapped.
//
// # Usage
//
//	loan := interest.LoanAggregate{
//	    CommitmentAmount:   1_000_000,
//	    MaturityYears:      13,
//	    GraceYears:         3,
//	    NominalRatePercent: 5,
//	}
//	nominal := interest.ExpectedPayments(loan, interest.PaymentScenario{})
//	atBondRate := interest.ExpectedPayments(loan, interest.PaymentScenario{}.WithOverride(7.5))
package interest
