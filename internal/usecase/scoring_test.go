package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
)

var scoreDate = time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func scoreAccount(id string, typ domain.AccountType) *domain.Account {
	return &domain.Account{ID: id, Name: id, Type: typ, Currency: "USD", Active: true}
}

func scoreAccounts() map[string]*domain.Account {
	return map[string]*domain.Account{
		"bank":    scoreAccount("bank", domain.AccountTypeAsset),
		"savings": scoreAccount("savings", domain.AccountTypeAsset),
		"income":  scoreAccount("income", domain.AccountTypeIncome),
		"expense": scoreAccount("expense", domain.AccountTypeExpense),
	}
}

func dLine(account, amount string) domain.JournalLine {
	return domain.JournalLine{AccountID: account, Direction: domain.DirectionDebit, Amount: mustDec(amount), Currency: "USD"}
}

func cLine(account, amount string) domain.JournalLine {
	return domain.JournalLine{AccountID: account, Direction: domain.DirectionCredit, Amount: mustDec(amount), Currency: "USD"}
}

func scoreEntry(id string, date time.Time, memo string, lines ...domain.JournalLine) *domain.JournalEntry {
	postedAt := date
	for i := range lines {
		lines[i].EntryID = id
		lines[i].Position = i
	}
	return &domain.JournalEntry{
		ID:         id,
		EntryDate:  date,
		Memo:       memo,
		SourceType: domain.SourceTypeManual,
		Status:     domain.EntryStatusPosted,
		Version:    1,
		PostedAt:   &postedAt,
		Lines:      lines,
	}
}

func scoreTxn(dir domain.TxnDirection, amount, desc, ref string) *domain.BankTransaction {
	return &domain.BankTransaction{
		ID:              "txn-1",
		SourceAccountID: "bank",
		TxnDate:         scoreDate,
		Direction:       dir,
		Amount:          mustDec(amount),
		Currency:        "USD",
		Description:     desc,
		Reference:       ref,
		Status:          domain.TxnStatusUnmatched,
		Version:         1,
	}
}

func defaultEngine() *ScoringEngine {
	return NewScoringEngine(domain.DefaultScoringPolicy(), domain.DefaultConsistencyPolicy())
}

func TestScore_PerfectSingleMatch(t *testing.T) {
	engine := defaultEngine()

	txn := scoreTxn(domain.TxnDirectionInflow, "250.00", "Acme Payment 42", "")
	entry := scoreEntry("e1", scoreDate, "ACME payment 42",
		dLine("bank", "250.00"), cLine("income", "250.00"))

	score, breakdown := engine.Score(ScoreInput{Txn: txn, Entries: []*domain.JournalEntry{entry}, Accounts: scoreAccounts()})

	// 0.4*100 + 0.25*100 + 0.2*100 + 0.1*100 + 0.05*50 = 97.5
	if score != 98 {
		t.Errorf("expected composite 98, got %d", score)
	}
	want := domain.ScoreBreakdown{Amount: 100, Date: 100, Description: 100, BusinessFit: 100, History: 50}
	if breakdown != want {
		t.Errorf("expected breakdown %+v, got %+v", want, breakdown)
	}
}

func TestScore_Determinism(t *testing.T) {
	engine := defaultEngine()

	txn := scoreTxn(domain.TxnDirectionInflow, "99.95", "wire transfer 0042", "0042")
	entry := scoreEntry("e1", scoreDate.AddDate(0, 0, -2), "incoming wire 0042",
		dLine("bank", "100.00"), cLine("income", "100.00"))
	in := ScoreInput{Txn: txn, Entries: []*domain.JournalEntry{entry}, Accounts: scoreAccounts()}

	first, firstBreakdown := engine.Score(in)
	for i := 0; i < 5; i++ {
		again, againBreakdown := engine.Score(in)
		if again != first || againBreakdown != firstBreakdown {
			t.Fatalf("score not deterministic: run %d gave %d %+v, first gave %d %+v",
				i, again, againBreakdown, first, firstBreakdown)
		}
	}
}

func TestScore_AmountDimension(t *testing.T) {
	engine := defaultEngine()

	tests := []struct {
		name    string
		txnAmt  string
		entries [][2]string // account amount pairs per entry, debit bank / credit income
		want    float64
	}{
		{"exact single", "250.00", [][2]string{{"250.00", "250.00"}}, 100},
		{"fee tolerance band", "100.00", [][2]string{{"100.50", "100.50"}}, 90},
		{"halfway through decay", "100.00", [][2]string{{"112.50", "112.50"}}, 45},
		{"beyond decay width", "100.00", [][2]string{{"140.00", "140.00"}}, 0},
		{"exact aggregate", "100.00", [][2]string{{"60.00", "60.00"}, {"40.00", "40.00"}}, 70},
		{"aggregate in fee band", "100.00", [][2]string{{"60.00", "60.00"}, {"40.30", "40.30"}}, 65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := scoreTxn(domain.TxnDirectionInflow, tt.txnAmt, "payment", "")
			var entries []*domain.JournalEntry
			for i, amounts := range tt.entries {
				entries = append(entries, scoreEntry(
					fmt.Sprintf("e%d", i+1), scoreDate, "payment",
					dLine("bank", amounts[0]), cLine("income", amounts[1])))
			}

			_, breakdown := engine.Score(ScoreInput{Txn: txn, Entries: entries, Accounts: scoreAccounts()})
			if breakdown.Amount != tt.want {
				t.Errorf("expected amount score %v, got %v", tt.want, breakdown.Amount)
			}
		})
	}
}

func TestScore_DateBands(t *testing.T) {
	engine := defaultEngine()

	tests := []struct {
		daysOff int
		want    float64
	}{
		{0, 100},
		{2, 90},
		{3, 90},
		{5, 70},
		{10, 50},
		{-10, 50},
		{30, 30},
		{31, 0},
	}

	for _, tt := range tests {
		txn := scoreTxn(domain.TxnDirectionInflow, "100.00", "payment", "")
		entry := scoreEntry("e1", scoreDate.AddDate(0, 0, tt.daysOff), "payment",
			dLine("bank", "100.00"), cLine("income", "100.00"))

		_, breakdown := engine.Score(ScoreInput{Txn: txn, Entries: []*domain.JournalEntry{entry}, Accounts: scoreAccounts()})
		if breakdown.Date != tt.want {
			t.Errorf("daysOff %d: expected date score %v, got %v", tt.daysOff, tt.want, breakdown.Date)
		}
	}
}

func TestScore_DateAggregateTakesWorstLeg(t *testing.T) {
	engine := defaultEngine()

	txn := scoreTxn(domain.TxnDirectionInflow, "100.00", "payment", "")
	near := scoreEntry("e1", scoreDate, "payment", dLine("bank", "60.00"), cLine("income", "60.00"))
	far := scoreEntry("e2", scoreDate.AddDate(0, 0, 10), "payment", dLine("bank", "40.00"), cLine("income", "40.00"))

	_, breakdown := engine.Score(ScoreInput{Txn: txn, Entries: []*domain.JournalEntry{near, far}, Accounts: scoreAccounts()})
	if breakdown.Date != 50 {
		t.Errorf("expected worst-leg date score 50, got %v", breakdown.Date)
	}
}

func TestScore_DescriptionDimension(t *testing.T) {
	engine := defaultEngine()

	tests := []struct {
		name string
		desc string
		ref  string
		memo string
		want float64
	}{
		{"exact after normalization", "ACME-PAYMENT/42!", "", "acme payment 42", 100},
		{"reference found in memo", "PAYMENT RECEIVED", "INV 7841", "Invoice inv 7841 office chairs", 90},
		{"partial token overlap", "acme monthly retainer july 2025", "", "Acme monthly retainer June 2025", 80},
		{"disjoint narratives", "alpha beta", "", "gamma delta", 0},
		{"empty description", "", "", "acme payment", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := scoreTxn(domain.TxnDirectionInflow, "100.00", tt.desc, tt.ref)
			entry := scoreEntry("e1", scoreDate, tt.memo,
				dLine("bank", "100.00"), cLine("income", "100.00"))

			_, breakdown := engine.Score(ScoreInput{Txn: txn, Entries: []*domain.JournalEntry{entry}, Accounts: scoreAccounts()})
			if breakdown.Description != tt.want {
				t.Errorf("expected description score %v, got %v", tt.want, breakdown.Description)
			}
		})
	}
}

func TestScore_DescriptionUsesLineEventTypes(t *testing.T) {
	engine := defaultEngine()

	txn := scoreTxn(domain.TxnDirectionInflow, "100.00", "consulting revenue", "")
	debit := dLine("bank", "100.00")
	debit.EventType = "consulting revenue"
	entry := scoreEntry("e1", scoreDate, "", debit, cLine("income", "100.00"))

	_, breakdown := engine.Score(ScoreInput{Txn: txn, Entries: []*domain.JournalEntry{entry}, Accounts: scoreAccounts()})
	if breakdown.Description != 100 {
		t.Errorf("expected event type to carry description score 100, got %v", breakdown.Description)
	}
}

func TestScore_BusinessFit(t *testing.T) {
	tests := []struct {
		name     string
		dir      domain.TxnDirection
		clearing []string
		lines    []domain.JournalLine
		want     float64
	}{
		{
			name: "inflow hitting bank on credit scores zero",
			dir:  domain.TxnDirectionInflow,
			lines: []domain.JournalLine{
				cLine("bank", "100.00"), dLine("expense", "100.00"),
			},
			want: 0,
		},
		{
			name: "outflow to expense",
			dir:  domain.TxnDirectionOutflow,
			lines: []domain.JournalLine{
				cLine("bank", "100.00"), dLine("expense", "100.00"),
			},
			want: 100,
		},
		{
			name:     "clearing counter-leg scores as transfer",
			dir:      domain.TxnDirectionInflow,
			clearing: []string{"clearing"},
			lines: []domain.JournalLine{
				dLine("bank", "100.00"), cLine("clearing", "100.00"),
			},
			want: 90,
		},
		{
			name: "counter-legs weighted by amount",
			dir:  domain.TxnDirectionInflow,
			lines: []domain.JournalLine{
				dLine("bank", "100.00"), cLine("income", "70.00"), cLine("savings", "30.00"),
			},
			// (70*100 + 30*40) / 100
			want: 82,
		},
		{
			name: "unknown counter account scores zero",
			dir:  domain.TxnDirectionInflow,
			lines: []domain.JournalLine{
				dLine("bank", "100.00"), cLine("mystery", "100.00"),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consistency := domain.DefaultConsistencyPolicy()
			consistency.ClearingAccountIDs = tt.clearing
			engine := NewScoringEngine(domain.DefaultScoringPolicy(), consistency)

			txn := scoreTxn(tt.dir, "100.00", "payment", "")
			entry := scoreEntry("e1", scoreDate, "payment", tt.lines...)

			_, breakdown := engine.Score(ScoreInput{Txn: txn, Entries: []*domain.JournalEntry{entry}, Accounts: scoreAccounts()})
			if breakdown.BusinessFit != tt.want {
				t.Errorf("expected business fit %v, got %v", tt.want, breakdown.BusinessFit)
			}
		})
	}
}

func TestScore_BusinessFitAveragesAcrossEntries(t *testing.T) {
	engine := defaultEngine()

	txn := scoreTxn(domain.TxnDirectionInflow, "100.00", "payment", "")
	good := scoreEntry("e1", scoreDate, "payment", dLine("bank", "60.00"), cLine("income", "60.00"))
	weak := scoreEntry("e2", scoreDate, "payment", dLine("bank", "40.00"), cLine("savings", "40.00"))

	_, breakdown := engine.Score(ScoreInput{Txn: txn, Entries: []*domain.JournalEntry{good, weak}, Accounts: scoreAccounts()})
	if breakdown.BusinessFit != 70 {
		t.Errorf("expected averaged business fit 70, got %v", breakdown.BusinessFit)
	}
}

func historyPrior(daysAgo int, amount, desc string, dir domain.TxnDirection) *domain.BankTransaction {
	return &domain.BankTransaction{
		ID:              "prior",
		SourceAccountID: "bank",
		TxnDate:         scoreDate.AddDate(0, 0, -daysAgo),
		Direction:       dir,
		Amount:          mustDec(amount),
		Currency:        "USD",
		Description:     desc,
		Status:          domain.TxnStatusMatched,
		Version:         1,
	}
}

func TestScore_HistoryDimension(t *testing.T) {
	engine := defaultEngine()

	steady := []*domain.BankTransaction{
		historyPrior(30, "500.00", "gym membership", domain.TxnDirectionOutflow),
		historyPrior(60, "500.00", "gym membership", domain.TxnDirectionOutflow),
		historyPrior(90, "500.00", "gym membership", domain.TxnDirectionOutflow),
	}

	tests := []struct {
		name        string
		amount      string
		history     []*domain.BankTransaction
		wantScore   float64
		wantAnomaly bool
	}{
		{"no history is neutral", "500.00", nil, 50, false},
		{
			"too few priors to establish a pattern", "500.00",
			steady[:2], 70, false,
		},
		{"established pattern matched", "500.00", steady, 100, false},
		{"deviation from pattern flags anomaly", "800.00", steady, 20, true},
		{"mild deviation stays neutral", "540.00", steady, 70, false},
		{
			"dissimilar narratives do not count", "500.00",
			[]*domain.BankTransaction{
				historyPrior(30, "500.00", "office rent", domain.TxnDirectionOutflow),
				historyPrior(60, "500.00", "office rent", domain.TxnDirectionOutflow),
				historyPrior(90, "500.00", "office rent", domain.TxnDirectionOutflow),
			},
			50, false,
		},
		{
			"opposite direction does not count", "500.00",
			[]*domain.BankTransaction{
				historyPrior(30, "500.00", "gym membership", domain.TxnDirectionInflow),
				historyPrior(60, "500.00", "gym membership", domain.TxnDirectionInflow),
				historyPrior(90, "500.00", "gym membership", domain.TxnDirectionInflow),
			},
			50, false,
		},
		{
			"irregular cadence stays neutral", "500.00",
			[]*domain.BankTransaction{
				historyPrior(2, "500.00", "gym membership", domain.TxnDirectionOutflow),
				historyPrior(4, "500.00", "gym membership", domain.TxnDirectionOutflow),
				historyPrior(84, "500.00", "gym membership", domain.TxnDirectionOutflow),
			},
			70, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := scoreTxn(domain.TxnDirectionOutflow, tt.amount, "gym membership", "")

			score, anomaly := engine.historyScore(txn, tt.history)
			if score != tt.wantScore || anomaly != tt.wantAnomaly {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.wantScore, tt.wantAnomaly, score, anomaly)
			}
		})
	}
}

func TestScore_AnomalySurfacesInBreakdown(t *testing.T) {
	engine := defaultEngine()

	txn := scoreTxn(domain.TxnDirectionOutflow, "800.00", "gym membership", "")
	entry := scoreEntry("e1", scoreDate, "gym membership",
		cLine("bank", "800.00"), dLine("expense", "800.00"))
	history := []*domain.BankTransaction{
		historyPrior(30, "500.00", "gym membership", domain.TxnDirectionOutflow),
		historyPrior(60, "500.00", "gym membership", domain.TxnDirectionOutflow),
		historyPrior(90, "500.00", "gym membership", domain.TxnDirectionOutflow),
	}

	_, breakdown := engine.Score(ScoreInput{
		Txn:      txn,
		Entries:  []*domain.JournalEntry{entry},
		Accounts: scoreAccounts(),
		History:  history,
	})

	if !breakdown.Anomaly {
		t.Error("expected anomaly flag on breakdown")
	}
	if breakdown.History != 20 {
		t.Errorf("expected history score 20, got %v", breakdown.History)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Starbucks Coffee #123!", []string{"starbucks", "coffee", "123"}},
		{"  Wire  TRANSFER   0042 ", []string{"wire", "transfer", "0042"}},
		{"a/b-c", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := normalizeText(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("normalizeText(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("normalizeText(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestTokensEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"acme", "acme", true},
		{"starbuks", "starbucks", true},
		{"invoice", "invoices", true},
		{"abcdefghij", "abcdefghxx", true},
		{"cat", "car", false},
		{"july", "june", false},
		{"payment", "invoice", false},
	}

	for _, tt := range tests {
		if got := tokensEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("tokensEqual(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDiceSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"empty side", nil, []string{"wire"}, 0},
		{"identical", []string{"wire", "transfer"}, []string{"wire", "transfer"}, 1},
		{"half overlap", []string{"wire", "transfer"}, []string{"wire", "fee"}, 0.5},
		{"disjoint", []string{"wire"}, []string{"fee"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := diceSimilarity(tt.a, tt.b); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRegularCadence(t *testing.T) {
	priors := func(daysAgo ...int) []*domain.BankTransaction {
		out := make([]*domain.BankTransaction, 0, len(daysAgo))
		for _, d := range daysAgo {
			out = append(out, historyPrior(d, "500.00", "gym membership", domain.TxnDirectionOutflow))
		}
		return out
	}

	tests := []struct {
		name   string
		priors []*domain.BankTransaction
		want   bool
	}{
		{"too few", priors(30, 60), false},
		{"steady monthly", priors(30, 60, 90), true},
		{"small jitter", priors(29, 60, 92), true},
		{"irregular", priors(2, 4, 84), false},
		{"all same day", priors(30, 30, 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := regularCadence(tt.priors); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
