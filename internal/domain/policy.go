package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ScoringPolicy holds the weights and tolerances the scoring engine runs
// on. Scores are policy applied to data; changing a weight or band must
// never require a code change.
type ScoringPolicy struct {
	WeightAmount      float64
	WeightDate        float64
	WeightDescription float64
	WeightBusinessFit float64
	WeightHistory     float64

	// FeeTolerance is the relative amount difference still treated as fee
	// noise, e.g. 0.01 for 1%.
	FeeTolerance decimal.Decimal
	// AmountDecayWidth is the relative difference at which the amount score
	// decays to zero.
	AmountDecayWidth decimal.Decimal
	// DateBands maps day distances to scores; bands must be sorted by
	// MaxDays ascending with non-increasing scores. Distances beyond the
	// last band score zero.
	DateBands []DateBand
	// MaxAggregateSize caps how many entries a one-to-many candidate may
	// combine.
	MaxAggregateSize int
	// Plausibility scores the counter-account type against the transaction
	// direction.
	Plausibility PlausibilityTable
	// ClearingFit is the business-fit score for a counter-leg on a clearing
	// account, either direction.
	ClearingFit float64
}

// DateBand scores day distances up to and including MaxDays.
type DateBand struct {
	MaxDays int
	Score   float64
}

// PlausibilityTable maps transaction direction and counter-account type to
// a business-fit score.
type PlausibilityTable map[TxnDirection]map[AccountType]float64

// DefaultScoringPolicy returns the stock weights: amount 40%, date 25%,
// description 20%, business fit 10%, history 5%.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		WeightAmount:      0.40,
		WeightDate:        0.25,
		WeightDescription: 0.20,
		WeightBusinessFit: 0.10,
		WeightHistory:     0.05,
		FeeTolerance:      decimal.NewFromFloat(0.01),
		AmountDecayWidth:  decimal.NewFromFloat(0.25),
		DateBands: []DateBand{
			{MaxDays: 0, Score: 100},
			{MaxDays: 3, Score: 90},
			{MaxDays: 7, Score: 70},
			{MaxDays: 14, Score: 50},
			{MaxDays: 30, Score: 30},
		},
		MaxAggregateSize: 3,
		Plausibility:     DefaultPlausibility(),
		ClearingFit:      90,
	}
}

// DefaultPlausibility returns the stock direction/account-type fit table.
func DefaultPlausibility() PlausibilityTable {
	return PlausibilityTable{
		TxnDirectionInflow: {
			AccountTypeIncome:    100,
			AccountTypeLiability: 85,
			AccountTypeEquity:    80,
			AccountTypeExpense:   60, // refund of an expense
			AccountTypeAsset:     40,
		},
		TxnDirectionOutflow: {
			AccountTypeExpense:   100,
			AccountTypeLiability: 85,
			AccountTypeEquity:    70,
			AccountTypeAsset:     40,
			AccountTypeIncome:    30, // refund issued
		},
	}
}

// Validate checks that the weights form a convex combination and the date
// bands are well-ordered.
func (p ScoringPolicy) Validate() error {
	sum := p.WeightAmount + p.WeightDate + p.WeightDescription + p.WeightBusinessFit + p.WeightHistory
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1, got %v", sum)
	}
	if p.WeightAmount < 0 || p.WeightDate < 0 || p.WeightDescription < 0 ||
		p.WeightBusinessFit < 0 || p.WeightHistory < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if p.AmountDecayWidth.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount decay width must be positive")
	}
	if p.FeeTolerance.IsNegative() {
		return fmt.Errorf("fee tolerance must be non-negative")
	}
	if len(p.DateBands) == 0 {
		return fmt.Errorf("at least one date band required")
	}
	for i := 1; i < len(p.DateBands); i++ {
		if p.DateBands[i].MaxDays <= p.DateBands[i-1].MaxDays {
			return fmt.Errorf("date bands must have strictly increasing MaxDays")
		}
		if p.DateBands[i].Score > p.DateBands[i-1].Score {
			return fmt.Errorf("date band scores must be non-increasing")
		}
	}
	if p.MaxAggregateSize < 1 {
		return fmt.Errorf("max aggregate size must be at least 1")
	}
	return nil
}

// DateScore returns the banded score for a day distance.
func (p ScoringPolicy) DateScore(days int) float64 {
	if days < 0 {
		days = -days
	}
	for _, b := range p.DateBands {
		if days <= b.MaxDays {
			return b.Score
		}
	}
	return 0
}

// RoutingPolicy holds the thresholds the match router applies, with
// optional per-account overrides.
type RoutingPolicy struct {
	AutoAcceptThreshold int
	ReviewFloor         int
	AccountOverrides    map[string]AccountThresholds
}

// AccountThresholds overrides routing thresholds for one account.
type AccountThresholds struct {
	AutoAcceptThreshold int
	ReviewFloor         int
}

// DefaultRoutingPolicy returns the stock thresholds: auto-accept at 85,
// review floor at 60.
func DefaultRoutingPolicy() RoutingPolicy {
	return RoutingPolicy{AutoAcceptThreshold: 85, ReviewFloor: 60}
}

// Validate checks threshold ordering.
func (p RoutingPolicy) Validate() error {
	if err := validateThresholds(p.AutoAcceptThreshold, p.ReviewFloor); err != nil {
		return err
	}
	for id, o := range p.AccountOverrides {
		if err := validateThresholds(o.AutoAcceptThreshold, o.ReviewFloor); err != nil {
			return fmt.Errorf("account %s: %w", id, err)
		}
	}
	return nil
}

func validateThresholds(auto, floor int) error {
	if auto < 0 || auto > 100 || floor < 0 || floor > 100 {
		return fmt.Errorf("thresholds must be within 0..100")
	}
	if floor >= auto {
		return fmt.Errorf("review floor %d must be below auto-accept threshold %d", floor, auto)
	}
	return nil
}

// ThresholdsFor resolves the thresholds for an account, falling back to the
// policy defaults.
func (p RoutingPolicy) ThresholdsFor(accountID string) (autoAccept, reviewFloor int) {
	if o, ok := p.AccountOverrides[accountID]; ok {
		return o.AutoAcceptThreshold, o.ReviewFloor
	}
	return p.AutoAcceptThreshold, p.ReviewFloor
}

// ConsistencyPolicy holds the knobs for the consistency checker and for
// acceptance blocking.
type ConsistencyPolicy struct {
	// ClearingAccountIDs names the accounts used as in-transit legs for
	// internal transfers.
	ClearingAccountIDs []string
	// TransferPairWindow is how far apart two clearing legs may sit and
	// still pair.
	TransferPairWindow time.Duration
	// StaleReviewAge is how long a pending_review match may stay open
	// before it is flagged.
	StaleReviewAge time.Duration
	// BlockSeverity is the minimum severity of an open check that blocks
	// acceptance of implicated matches.
	BlockSeverity Severity
}

// DefaultConsistencyPolicy returns the stock checker knobs.
func DefaultConsistencyPolicy() ConsistencyPolicy {
	return ConsistencyPolicy{
		TransferPairWindow: 72 * time.Hour,
		StaleReviewAge:     168 * time.Hour,
		BlockSeverity:      SeverityHigh,
	}
}

// IsClearingAccount reports whether the account is configured as a
// clearing account.
func (p ConsistencyPolicy) IsClearingAccount(accountID string) bool {
	for _, id := range p.ClearingAccountIDs {
		if id == accountID {
			return true
		}
	}
	return false
}
