package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

func TestSnapshot_DerivaCampos(t *testing.T) {
	e := newEnv(ledger.ReconcileConfig{})
	e.record(t, entity.OperationPO, "SKU001", 100, "PO-1")
	e.record(t, entity.OperationPutaway, "SKU001", 70, "PUT-1")
	e.record(t, entity.OperationPicklist, "SKU001", 30, "PICK-1")
	e.record(t, entity.OperationReturnTryAndBuy, "SKU001", 4, "RET-1")

	snap, err := e.summary.Snapshot(context.Background(), "SKU001")
	require.NoError(t, err)
	assert.True(t, snap.AvailableForPicking.Equal(qty(40)))
	assert.True(t, snap.TotalInventory.Equal(qty(174)))
	assert.Equal(t, int64(4), snap.Record.Version)
}

func TestSnapshot_SKUDesconocida(t *testing.T) {
	e := newEnv(ledger.ReconcileConfig{})
	_, err := e.summary.Snapshot(context.Background(), "SKU404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.summary.Snapshot(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSnapshots_OmiteInexistentes(t *testing.T) {
	e := newEnv(ledger.ReconcileConfig{})
	e.record(t, entity.OperationPO, "SKU001", 1, "PO-1")

	list, err := e.summary.Snapshots(context.Background(), []string{"SKU001", "SKU404"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "SKU001", list[0].Record.SKU)
}

func TestSnapshot_SiempreReflejaLaUltimaVersionDelLedger(t *testing.T) {
	e := newEnv(ledger.ReconcileConfig{})
	ctx := context.Background()

	e.record(t, entity.OperationPutaway, "SKU001", 70, "PUT-1")
	first, err := e.summary.Snapshot(ctx, "SKU001")
	require.NoError(t, err)
	assert.True(t, first.AvailableForPicking.Equal(qty(70)))

	e.record(t, entity.OperationPicklist, "SKU001", 50, "PICK-1")
	second, err := e.summary.Snapshot(ctx, "SKU001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Record.Version)
	assert.True(t, second.AvailableForPicking.Equal(qty(20)))

	// la vista no guarda copia propia: una escritura directa se ve tal cual hasta conciliar.
	e.store.Tamper("SKU001", func(rec *entity.LedgerRecord) {
		rec.Putaway = qty(60)
		rec.Recompute()
	})
	third, err := e.summary.Snapshot(ctx, "SKU001")
	require.NoError(t, err)
	assert.True(t, third.AvailableForPicking.Equal(qty(10)))
}

func TestAudit_HistorialYRangos(t *testing.T) {
	e := newEnv(ledger.ReconcileConfig{})
	audit := ledger.NewAuditService(e.store.MovementLogRepository(), e.store.DriftRepository(), e.summary, nil)
	for _, ref := range []string{"PO-1", "PO-2", "PO-3"} {
		e.record(t, entity.OperationPO, "SKU001", 1, ref)
	}
	ctx := context.Background()

	all, err := audit.History(ctx, repository.HistoryFilter{SKU: " SKU001 "})
	require.NoError(t, err)
	require.Len(t, all, 3)

	page, err := audit.History(ctx, repository.HistoryFilter{SKU: "SKU001", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	from := all[1].CreatedAt
	ranged, err := audit.History(ctx, repository.HistoryFilter{SKU: "SKU001", From: &from})
	require.NoError(t, err)
	assert.Len(t, ranged, 2, "el rango es inclusivo")

	to := from.Add(-time.Hour)
	_, err = audit.History(ctx, repository.HistoryFilter{SKU: "SKU001", From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type stubRenderer struct {
	rows int
}

func (r *stubRenderer) RenderMovementReport(_ context.Context, snap *ledger.Snapshot, movements []*entity.Movement, _, _ *time.Time) ([]byte, error) {
	r.rows = len(movements)
	return []byte("%PDF-" + snap.Record.SKU), nil
}

func TestAudit_Reporte(t *testing.T) {
	e := newEnv(ledger.ReconcileConfig{})
	e.record(t, entity.OperationPO, "SKU001", 1, "PO-1")
	e.record(t, entity.OperationGRN, "SKU001", 1, "GRN-1")
	ctx := context.Background()

	renderer := &stubRenderer{}
	audit := ledger.NewAuditService(e.store.MovementLogRepository(), e.store.DriftRepository(), e.summary, renderer)
	out, err := audit.Report(ctx, "SKU001", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-SKU001", string(out))
	assert.Equal(t, 2, renderer.rows)

	_, err = audit.Report(ctx, "SKU404", nil, nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	disabled := ledger.NewAuditService(e.store.MovementLogRepository(), e.store.DriftRepository(), e.summary, nil)
	_, err = disabled.Report(ctx, "SKU001", nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAudit_DriftEvents(t *testing.T) {
	e := newEnv(ledger.ReconcileConfig{})
	audit := ledger.NewAuditService(e.store.MovementLogRepository(), e.store.DriftRepository(), e.summary, nil)
	e.record(t, entity.OperationPO, "SKU001", 10, "PO-1")
	for _, bad := range []int64{11, 12} {
		e.store.Tamper("SKU001", func(rec *entity.LedgerRecord) { rec.PO = qty(bad) })
		_, err := e.engine.ReconcileSKU(context.Background(), "SKU001", entity.DriftSourceManual)
		require.NoError(t, err)
	}

	events, err := audit.DriftEvents(context.Background(), "SKU001", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].Previous.PO.Equal(qty(12)), "más reciente primero")

	events, err = audit.DriftEvents(context.Background(), "SKU001", 1, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Previous.PO.Equal(qty(11)))
}
