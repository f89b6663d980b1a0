package usecase

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/finbase/ledgermatch/internal/domain"
)

// ScoringEngine turns a bank transaction and a candidate entry set into a
// composite confidence score. It is deterministic and side-effect free:
// identical inputs always produce identical scores, and everything it needs
// (including match history) arrives as input.
type ScoringEngine struct {
	policy      domain.ScoringPolicy
	consistency domain.ConsistencyPolicy
}

// NewScoringEngine creates a ScoringEngine.
func NewScoringEngine(policy domain.ScoringPolicy, consistency domain.ConsistencyPolicy) *ScoringEngine {
	return &ScoringEngine{policy: policy, consistency: consistency}
}

// ScoreInput carries one candidate to score: the bank transaction, the
// entry set (one entry, or several for an aggregate candidate), the
// accounts referenced by the entry lines, and prior settled transactions
// for the source account.
type ScoreInput struct {
	Txn      *domain.BankTransaction
	Entries  []*domain.JournalEntry
	Accounts map[string]*domain.Account
	History  []*domain.BankTransaction
}

// Score computes the weighted composite and its per-dimension breakdown.
// The composite is clamped to [0,100] and rounded; the breakdown keeps the
// raw dimension values.
func (e *ScoringEngine) Score(in ScoreInput) (int, domain.ScoreBreakdown) {
	breakdown := domain.ScoreBreakdown{
		Amount:      e.amountScore(in.Txn, in.Entries),
		Date:        e.dateScore(in.Txn, in.Entries),
		Description: e.descriptionScore(in.Txn, in.Entries),
		BusinessFit: e.businessFitScore(in.Txn, in.Entries, in.Accounts),
	}
	breakdown.History, breakdown.Anomaly = e.historyScore(in.Txn, in.History)

	composite := e.policy.WeightAmount*breakdown.Amount +
		e.policy.WeightDate*breakdown.Date +
		e.policy.WeightDescription*breakdown.Description +
		e.policy.WeightBusinessFit*breakdown.BusinessFit +
		e.policy.WeightHistory*breakdown.History

	composite = math.Max(0, math.Min(100, composite))

	return int(math.Round(composite)), breakdown
}

// amountScore compares the transaction amount against the candidate's
// amount. Exact equality scores highest, a difference within the fee
// tolerance scores as fee noise, and larger differences decay linearly to
// zero. Aggregates are capped lower than single entries so an exact
// one-to-one match always outranks an exact combination.
func (e *ScoringEngine) amountScore(txn *domain.BankTransaction, entries []*domain.JournalEntry) float64 {
	exact, banded := 100.0, 90.0
	if len(entries) > 1 {
		exact, banded = 70.0, 65.0
	}

	candidate := candidateAmount(txn, entries)

	if candidate.Equal(txn.Amount) {
		return exact
	}
	if txn.Amount.IsZero() {
		return 0
	}

	relDiff := candidate.Sub(txn.Amount).Abs().Div(txn.Amount)
	if relDiff.LessThanOrEqual(e.policy.FeeTolerance) {
		return banded
	}

	rd, _ := relDiff.Float64()
	width, _ := e.policy.AmountDecayWidth.Float64()

	return math.Max(0, banded*(1-rd/width))
}

// candidateAmount is the amount a candidate entry set puts against the
// transaction's source account. Entries that never touch the source
// account fall back to their debit total; business fit zeroes them out
// separately.
func candidateAmount(txn *domain.BankTransaction, entries []*domain.JournalEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		if _, amount, ok := entry.TouchesAccount(txn.SourceAccountID); ok {
			total = total.Add(amount)
			continue
		}
		debits, _ := entry.Totals()
		total = total.Add(debits)
	}
	return total
}

// dateScore applies the banded day-distance score. An aggregate takes its
// worst leg: every combined entry should sit near the transaction date.
func (e *ScoringEngine) dateScore(txn *domain.BankTransaction, entries []*domain.JournalEntry) float64 {
	worst := 100.0
	for _, entry := range entries {
		days := int(math.Abs(txn.TxnDate.Sub(entry.EntryDate).Hours()) / 24)
		if s := e.policy.DateScore(days); s < worst {
			worst = s
		}
	}
	return worst
}

// descriptionScore compares the bank narrative against the entry memo and
// line event types. An exact normalized match scores 100; a bank reference
// found in the entry text guarantees at least 90; otherwise the score is
// Dice token overlap with fuzzy token equality.
func (e *ScoringEngine) descriptionScore(txn *domain.BankTransaction, entries []*domain.JournalEntry) float64 {
	entryText := make([]string, 0, len(entries))
	for _, entry := range entries {
		entryText = append(entryText, entry.Memo)
		for _, l := range entry.Lines {
			entryText = append(entryText, l.EventType)
		}
	}

	txnTokens := normalizeText(txn.Description)
	candidateTokens := normalizeText(strings.Join(entryText, " "))

	if len(txnTokens) == 0 || len(candidateTokens) == 0 {
		return 0
	}

	if strings.Join(txnTokens, " ") == strings.Join(candidateTokens, " ") {
		return 100
	}

	score := diceSimilarity(txnTokens, candidateTokens) * 100

	if ref := strings.Join(normalizeText(txn.Reference), " "); ref != "" {
		if strings.Contains(strings.Join(candidateTokens, " "), ref) {
			return math.Max(score, 90)
		}
	}

	return score
}

// businessFitScore checks whether the entry set makes accounting sense for
// the transaction: the source account must be hit on the side the money
// moved, and the counter-accounts are scored through the plausibility
// table. Clearing-account counter-legs score as transfer legs.
func (e *ScoringEngine) businessFitScore(txn *domain.BankTransaction, entries []*domain.JournalEntry, accounts map[string]*domain.Account) float64 {
	wantSide := txn.Direction.LedgerSide()

	total := 0.0
	for _, entry := range entries {
		side, _, ok := entry.TouchesAccount(txn.SourceAccountID)
		if !ok || side != wantSide {
			continue
		}

		weighted := decimal.Zero
		sum := decimal.Zero
		for _, l := range entry.Lines {
			if l.AccountID == txn.SourceAccountID {
				continue
			}

			fit := 0.0
			if e.consistency.IsClearingAccount(l.AccountID) {
				fit = e.policy.ClearingFit
			} else if account := accounts[l.AccountID]; account != nil {
				fit = e.policy.Plausibility[txn.Direction][account.Type]
			}

			weighted = weighted.Add(l.Amount.Mul(decimal.NewFromFloat(fit)))
			sum = sum.Add(l.Amount)
		}

		if sum.IsZero() {
			continue
		}
		fit, _ := weighted.Div(sum).Float64()
		total += fit
	}

	return total / float64(len(entries))
}

// historyScore compares the transaction against prior settled transactions
// with a similar narrative on the same account. A well-established pattern
// matched closely scores 100; a strong pattern the amount clearly deviates
// from scores low and raises the anomaly flag for the consistency layer.
// No history is neutral.
func (e *ScoringEngine) historyScore(txn *domain.BankTransaction, history []*domain.BankTransaction) (float64, bool) {
	const (
		similarNarrative = 0.7
		amountCloseness  = 0.05
		deviationBound   = 0.25
		establishedCount = 3
	)

	txnTokens := normalizeText(txn.Description)

	var priors []*domain.BankTransaction
	for _, h := range history {
		if h.Direction != txn.Direction {
			continue
		}
		if diceSimilarity(txnTokens, normalizeText(h.Description)) >= similarNarrative {
			priors = append(priors, h)
		}
	}

	if len(priors) == 0 {
		return 50, false
	}
	if len(priors) < establishedCount {
		return 70, false
	}

	mean := decimal.Zero
	for _, p := range priors {
		mean = mean.Add(p.Amount)
	}
	mean = mean.Div(decimal.NewFromInt(int64(len(priors))))

	if mean.IsZero() {
		return 70, false
	}
	deviation, _ := txn.Amount.Sub(mean).Abs().Div(mean).Float64()

	if deviation > deviationBound {
		return 20, true
	}
	if deviation <= amountCloseness && regularCadence(priors) {
		return 100, false
	}
	return 70, false
}

// regularCadence reports whether prior transactions arrive on a steady
// rhythm: the day gaps between consecutive dates stay close to their mean.
func regularCadence(priors []*domain.BankTransaction) bool {
	if len(priors) < 3 {
		return false
	}

	dates := make([]time.Time, 0, len(priors))
	for _, p := range priors {
		dates = append(dates, p.TxnDate)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	gaps := make([]float64, 0, len(dates)-1)
	meanGap := 0.0
	for i := 1; i < len(dates); i++ {
		gap := dates[i].Sub(dates[i-1]).Hours() / 24
		gaps = append(gaps, gap)
		meanGap += gap
	}
	meanGap /= float64(len(gaps))

	if meanGap == 0 {
		return false
	}

	variance := 0.0
	for _, g := range gaps {
		variance += (g - meanGap) * (g - meanGap)
	}
	stddev := math.Sqrt(variance / float64(len(gaps)))

	return stddev <= meanGap*0.2 || stddev <= 3
}

// normalizeText lowercases, strips punctuation and splits a narrative into
// tokens, dropping one-character noise.
func normalizeText(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// diceSimilarity is the Dice coefficient over token sets with fuzzy token
// equality: tokens a small edit distance apart still count as the same.
func diceSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	used := make([]bool, len(b))
	matched := 0
	for _, ta := range a {
		for j, tb := range b {
			if used[j] {
				continue
			}
			if tokensEqual(ta, tb) {
				used[j] = true
				matched++
				break
			}
		}
	}

	return 2 * float64(matched) / float64(len(a)+len(b))
}

// tokensEqual allows exact matches and near-misses within a bounded edit
// distance, so "acme" still matches "acme." and "starbuks" matches
// "starbucks".
func tokensEqual(a, b string) bool {
	if a == b {
		return true
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen < 4 {
		return false
	}

	allowed := maxLen / 5
	if allowed < 1 {
		allowed = 1
	}

	distance := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	return distance <= allowed
}
