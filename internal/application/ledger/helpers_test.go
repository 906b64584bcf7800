package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/infrastructure/memory"
)

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

type env struct {
	store   *memory.Store
	gateway *ledger.Gateway
	summary *ledger.SummaryView
	engine  *ledger.ReconciliationEngine
}

func newEnv(cfg ledger.ReconcileConfig) *env {
	store := memory.NewStore()
	log := zerolog.Nop()
	return &env{
		store: store,
		gateway: ledger.NewGateway(store.TxRunner(), store.LedgerRepository(), store.MovementLogRepository(),
			ledger.GatewayConfig{MaxAttempts: 100, RetryBackoff: time.Millisecond}, log),
		summary: ledger.NewSummaryView(store.LedgerRepository()),
		engine: ledger.NewReconciliationEngine(store.TxRunner(), store.LedgerRepository(), store.MovementLogRepository(),
			store.DriftRepository(), cfg, log),
	}
}

func (e *env) record(t *testing.T, op entity.OperationType, sku string, n int64, ref string) *ledger.Outcome {
	t.Helper()
	out, err := e.gateway.Record(context.Background(), ledger.Command{
		OperationType: op, SKU: sku, Quantity: qty(n), ReferenceID: ref, PerformedBy: "tester",
	})
	require.NoError(t, err)
	return out
}

func (e *env) live(t *testing.T, sku string) *entity.LedgerRecord {
	t.Helper()
	rec, err := e.store.LedgerRepository().Get(context.Background(), sku)
	require.NoError(t, err)
	return rec
}
