package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	adaptershttp "github.com/finbase/ledgermatch/internal/adapter/http"
	"github.com/finbase/ledgermatch/internal/adapter/http/dto"
	"github.com/finbase/ledgermatch/internal/adapter/http/handler"
	"github.com/finbase/ledgermatch/internal/adapter/repository/postgres"
	redisrepo "github.com/finbase/ledgermatch/internal/adapter/repository/redis"
	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/infrastructure/logging"
	infraredis "github.com/finbase/ledgermatch/internal/infrastructure/redis"
	"github.com/finbase/ledgermatch/internal/usecase"
	"github.com/finbase/ledgermatch/tests/testutil"
)

// testServer wires the full stack against real Postgres and Redis the way
// cmd/server does, minus metrics and the outbox publisher loop.
type testServer struct {
	DB          *testutil.TestDB
	Router      http.Handler
	AccountRepo *postgres.AccountRepository
	EntryRepo   *postgres.EntryRepository
	MatchRepo   *postgres.MatchRepository
	OutboxRepo  *postgres.OutboxRepository
	LedgerUC    *usecase.LedgerUseCase
	MatcherUC   *usecase.MatcherUseCase
	ReviewUC    *usecase.ReviewUseCase
	cleanup     func()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)

	pool := testDB.Pool
	txManager := postgres.NewTxManager(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	entryRepo := postgres.NewEntryRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)
	stmtRepo := postgres.NewStatementRepository(pool)
	matchRepo := postgres.NewMatchRepository(pool)
	runRepo := postgres.NewRunRepository(pool)
	checkRepo := postgres.NewCheckRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	idGen := postgres.NewULIDGenerator()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	redisClient, err := infraredis.NewClient(ctx, redisURL)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	idempotencyStore := redisrepo.NewIdempotencyStore(redisClient)
	cache := redisrepo.NewCache(redisClient)

	slogger := logging.New(logging.ParseLevel("error"), "json")
	scoringPolicy := domain.DefaultScoringPolicy()
	routingPolicy := domain.DefaultRoutingPolicy()
	consistencyPolicy := domain.DefaultConsistencyPolicy()

	retrier := postgres.NewRetrier()
	accountUC := usecase.NewAccountUseCase(accountRepo, idGen)
	entryUC := usecase.NewEntryUseCase(txManager, entryRepo, accountRepo, idGen)
	ledgerUC := usecase.NewLedgerUseCase(txManager, entryRepo, accountRepo, ledgerRepo, outboxRepo, idGen).WithRetrier(retrier)
	stmtUC := usecase.NewStatementUseCase(txManager, stmtRepo, accountRepo, idGen, nil)
	scorer := usecase.NewScoringEngine(scoringPolicy, consistencyPolicy)
	consistencyUC := usecase.NewConsistencyUseCase(
		txManager, matchRepo, checkRepo, ledgerRepo, outboxRepo,
		consistencyPolicy, idGen, nil, slogger.Logger,
	)
	matcherUC := usecase.NewMatcherUseCase(
		txManager, matchRepo, stmtRepo, entryRepo, accountRepo, runRepo, outboxRepo,
		ledgerUC, consistencyUC, scorer, routingPolicy, idGen, nil, slogger.Logger,
	)
	reviewUC := usecase.NewReviewUseCase(
		txManager, matchRepo, stmtRepo, checkRepo, outboxRepo,
		ledgerUC, consistencyPolicy, idGen, cache, nil, slogger.Logger,
	).WithRetrier(retrier)

	router := adaptershttp.NewRouter(adaptershttp.RouterConfig{
		AccountHandler:        handler.NewAccountHandler(accountUC),
		EntryHandler:          handler.NewEntryHandler(entryUC, ledgerUC),
		LedgerHandler:         handler.NewLedgerHandler(ledgerUC),
		StatementHandler:      handler.NewStatementHandler(stmtUC),
		ReconciliationHandler: handler.NewReconciliationHandler(matcherUC, reviewUC, matchRepo),
		ConsistencyHandler:    handler.NewConsistencyHandler(consistencyUC),
		HealthHandler:         handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore:      idempotencyStore,
		Logger:                zerolog.Nop(),
	})

	return &testServer{
		DB:          testDB,
		Router:      router,
		AccountRepo: accountRepo,
		EntryRepo:   entryRepo,
		MatchRepo:   matchRepo,
		OutboxRepo:  outboxRepo,
		LedgerUC:    ledgerUC,
		MatcherUC:   matcherUC,
		ReviewUC:    reviewUC,
		cleanup: func() {
			redisClient.Close()
			testDB.Cleanup()
		},
	}
}

func (s *testServer) Close() {
	s.cleanup()
}

// doJSON sends a request through the router and decodes the response body
// into out when out is non-nil.
func (s *testServer) doJSON(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)

	if out != nil && w.Code < 300 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
		}
	}
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder, out *dto.ErrorResponse) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to parse error response %q: %v", w.Body.String(), err)
	}
}
