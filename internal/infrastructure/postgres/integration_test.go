package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
	"github.com/jhoicas/inventory-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/inventory-ledger/pkg/config"
)

// Requieren una base PostgreSQL desechable: DATABASE_URL=postgres://... go test ./internal/infrastructure/postgres
// Cada prueba vacía las tablas del ledger.

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

type pgEnv struct {
	pool    *pgxpool.Pool
	ledger  *postgres.LedgerRepo
	movs    *postgres.MovementLogRepo
	gateway *ledger.Gateway
	engine  *ledger.ReconciliationEngine
	audit   *ledger.AuditService
}

func newPgEnv(t *testing.T) *pgEnv {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL no definida")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: url, MaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.EnsureSchema(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE inventory_ledger, inventory_movements, inventory_drift_events`)
	require.NoError(t, err)

	log := zerolog.Nop()
	txRunner := postgres.NewTxRunner(pool, 2*time.Second)
	ledgerRepo := postgres.NewLedgerRepository(pool)
	movRepo := postgres.NewMovementLogRepository(pool)
	driftRepo := postgres.NewDriftRepository(pool)
	return &pgEnv{
		pool:   pool,
		ledger: ledgerRepo,
		movs:   movRepo,
		gateway: ledger.NewGateway(txRunner, ledgerRepo, movRepo,
			ledger.GatewayConfig{MaxAttempts: 50, RetryBackoff: time.Millisecond}, log),
		engine: ledger.NewReconciliationEngine(txRunner, ledgerRepo, movRepo, driftRepo, ledger.ReconcileConfig{}, log),
		audit:  ledger.NewAuditService(movRepo, driftRepo, ledger.NewSummaryView(ledgerRepo), nil),
	}
}

func (e *pgEnv) record(t *testing.T, op entity.OperationType, sku string, n int64, ref string) *ledger.Outcome {
	t.Helper()
	out, err := e.gateway.Record(context.Background(), ledger.Command{
		OperationType: op, SKU: sku, Quantity: qty(n), ReferenceID: ref, PerformedBy: "tester",
	})
	require.NoError(t, err)
	return out
}

func (e *pgEnv) live(t *testing.T, sku string) *entity.LedgerRecord {
	t.Helper()
	rec, err := e.ledger.Get(context.Background(), sku)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func TestPostgres_FlujoDeEntradaYReserva(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()

	e.record(t, entity.OperationPO, "SKU001", 100, "PO-1")
	e.record(t, entity.OperationGRN, "SKU001", 80, "GRN-1")
	e.record(t, entity.OperationPutaway, "SKU001", 70, "PUT-1")
	e.record(t, entity.OperationPicklist, "SKU001", 30, "PICK-1")

	rec := e.live(t, "SKU001")
	assert.True(t, rec.PO.Equal(qty(100)))
	assert.True(t, rec.GRN.Equal(qty(80)))
	assert.True(t, rec.Putaway.Equal(qty(70)))
	assert.True(t, rec.Picklist.Equal(qty(30)))
	assert.True(t, rec.TotalAvailableQuantity.Equal(qty(40)))
	assert.Equal(t, int64(4), rec.Version)

	folded, err := e.movs.Fold(ctx, "SKU001")
	require.NoError(t, err)
	for _, c := range entity.AllCounters {
		assert.True(t, folded.Counters.Get(c).Equal(rec.Counters.Get(c)), "contador %s", c)
	}
	assert.True(t, folded.TotalAvailableQuantity.Equal(qty(40)))

	all, err := e.audit.History(ctx, repository.HistoryFilter{SKU: "SKU001"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, entity.OperationPO, all[0].OperationType)
	assert.Equal(t, entity.OperationPicklist, all[3].OperationType)

	page, err := e.audit.History(ctx, repository.HistoryFilter{SKU: "SKU001", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[1].ID, page[0].ID)
	assert.Equal(t, all[2].ID, page[1].ID)

	from := all[2].CreatedAt
	ranged, err := e.audit.History(ctx, repository.HistoryFilter{SKU: "SKU001", From: &from})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)
}

func TestPostgres_MovimientoRepetidoNoCambiaElLedger(t *testing.T) {
	e := newPgEnv(t)
	e.record(t, entity.OperationPutaway, "SKU001", 70, "PUT-1")

	again := e.record(t, entity.OperationPutaway, "SKU001", 70, "PUT-1")
	assert.True(t, again.Duplicate)
	assert.Equal(t, int64(1), again.Record.Version)

	rec := e.live(t, "SKU001")
	assert.True(t, rec.Putaway.Equal(qty(70)))
	assert.Equal(t, int64(1), rec.Version)

	var count int
	require.NoError(t, e.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM inventory_movements WHERE sku = 'SKU001'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPostgres_ReservasConcurrentesNoSobrevenden(t *testing.T) {
	e := newPgEnv(t)
	e.record(t, entity.OperationPutaway, "SKU001", 70, "PUT-1")

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.gateway.Record(context.Background(), ledger.Command{
				OperationType: entity.OperationPicklist,
				SKU:           "SKU001",
				Quantity:      qty(50),
				ReferenceID:   fmt.Sprintf("PICK-%d", i),
			})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientQuantity):
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)

	rec := e.live(t, "SKU001")
	assert.True(t, rec.Picklist.Equal(qty(50)))
	assert.True(t, rec.TotalAvailableQuantity.Equal(qty(20)))
	assert.Equal(t, int64(2), rec.Version)
}

func TestPostgres_ConciliacionRestauraFilaCorrupta(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()
	e.record(t, entity.OperationPutaway, "SKU001", 70, "PUT-1")
	e.record(t, entity.OperationPicklist, "SKU001", 30, "PICK-1")

	_, err := e.pool.Exec(ctx, `UPDATE inventory_ledger
		SET putaway_quantity = 999, total_available_quantity = 999 - picklist_quantity
		WHERE sku = 'SKU001'`)
	require.NoError(t, err)

	res, err := e.engine.ReconcileSKU(ctx, "SKU001", entity.DriftSourceManual)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCorrected, res.Status)
	require.NotNil(t, res.Before)
	assert.True(t, res.Before.Putaway.Equal(qty(999)))

	rec := e.live(t, "SKU001")
	assert.True(t, rec.Putaway.Equal(qty(70)))
	assert.True(t, rec.TotalAvailableQuantity.Equal(qty(40)))
	assert.Equal(t, int64(3), rec.Version)

	events, err := e.audit.DriftEvents(ctx, "SKU001", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	again, err := e.engine.ReconcileSKU(ctx, "SKU001", entity.DriftSourceManual)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusInSync, again.Status)
}

func TestPostgres_ApplyDeltaDistingueCausa(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()

	rec, err := e.ledger.GetOrCreate(ctx, "SKU001")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.Version)

	rec, err = e.ledger.ApplyDelta(ctx, "SKU001", entity.CounterPutaway, qty(10), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.True(t, rec.TotalAvailableQuantity.Equal(qty(10)))

	_, err = e.ledger.ApplyDelta(ctx, "SKU001", entity.CounterPutaway, qty(1), 0)
	var conflict *domain.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.Actual)

	_, err = e.ledger.ApplyDelta(ctx, "SKU001", entity.CounterPicklist, qty(11), 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientQuantity)

	_, err = e.ledger.ApplyDelta(ctx, "SKU001", entity.CounterPO, qty(-1), 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientQuantity)

	_, err = e.ledger.ApplyDelta(ctx, "SKU404", entity.CounterPO, qty(1), 0)
	assert.ErrorIs(t, err, domain.ErrVersionConflict, "sin fila no hay nada que actualizar")

	assert.Equal(t, int64(1), e.live(t, "SKU001").Version)
}

func TestPostgres_OverwriteConCAS(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()

	created, err := e.ledger.Overwrite(ctx, &entity.LedgerRecord{
		SKU: "SKU001", Counters: entity.Counters{Putaway: qty(5), Picklist: qty(2)},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)
	assert.True(t, created.TotalAvailableQuantity.Equal(qty(3)))

	_, err = e.ledger.Overwrite(ctx, &entity.LedgerRecord{SKU: "SKU001"}, 0)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	updated, err := e.ledger.Overwrite(ctx, &entity.LedgerRecord{
		SKU: "SKU001", Counters: entity.Counters{Putaway: qty(8)},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	// las restricciones CHECK de la tabla se reportan como rechazo de negocio.
	_, err = e.ledger.Overwrite(ctx, &entity.LedgerRecord{
		SKU: "SKU001", Counters: entity.Counters{Putaway: qty(1), Picklist: qty(4)},
	}, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientQuantity)
	assert.Equal(t, int64(2), e.live(t, "SKU001").Version)
}

func TestPostgres_ListSKUsPagina(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()
	for _, sku := range []string{"SKU003", "SKU001", "SKU002"} {
		e.record(t, entity.OperationPO, sku, 1, "PO-1")
	}

	first, err := e.ledger.ListSKUs(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"SKU001", "SKU002"}, first)

	rest, err := e.movs.ListSKUs(ctx, first[len(first)-1], 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"SKU003"}, rest)
}
