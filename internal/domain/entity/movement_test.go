package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

func mov(id string, op entity.OperationType, qty int64, at time.Time) *entity.Movement {
	return &entity.Movement{ID: id, SKU: "SKU001", OperationType: op, QuantityChange: d(qty), ReferenceID: "REF-" + id, CreatedAt: at}
}

func TestFold_ReproduceElFlujoCompleto(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	movements := []*entity.Movement{
		mov("4", entity.OperationPicklist, 30, t0.Add(3*time.Minute)),
		mov("1", entity.OperationPO, 100, t0),
		mov("3", entity.OperationPutaway, 70, t0.Add(2*time.Minute)),
		mov("2", entity.OperationGRN, 80, t0.Add(time.Minute)),
		mov("5", entity.OperationPicklist, -10, t0.Add(4*time.Minute)),
	}

	rec := entity.Fold("SKU001", movements)

	assert.Equal(t, "SKU001", rec.SKU)
	assert.True(t, rec.PO.Equal(d(100)))
	assert.True(t, rec.GRN.Equal(d(80)))
	assert.True(t, rec.Putaway.Equal(d(70)))
	assert.True(t, rec.Picklist.Equal(d(20)))
	assert.True(t, rec.TotalAvailableQuantity.Equal(d(50)))
	assert.Equal(t, t0.Add(4*time.Minute), rec.UpdatedAt)
	assert.Zero(t, rec.Version)
	assert.Equal(t, "4", movements[0].ID, "Fold no reordena el slice del llamador")
}

func TestFold_SinMovimientos(t *testing.T) {
	rec := entity.Fold("SKU404", nil)
	assert.True(t, rec.Counters.Equal(entity.Counters{}))
	assert.True(t, rec.TotalAvailableQuantity.IsZero())
}

func TestSortMovements_DesempataPorID(t *testing.T) {
	at := time.Now()
	list := []*entity.Movement{mov("b", entity.OperationPO, 1, at), mov("a", entity.OperationPO, 1, at)}
	entity.SortMovements(list)
	assert.Equal(t, "a", list[0].ID)
}

func TestParseOperationType(t *testing.T) {
	op, ok := entity.ParseOperationType(" PutAway ")
	assert.True(t, ok)
	assert.Equal(t, entity.OperationPutaway, op)
	assert.Equal(t, entity.CounterPutaway, op.Counter())

	_, ok = entity.ParseOperationType("transfer")
	assert.False(t, ok)
}

func TestMovement_KeyYReversal(t *testing.T) {
	m := mov("1", entity.OperationPicklist, -5, time.Now())
	m.ReferenceID = entity.ReversalPrefix + "PICK-1"
	assert.True(t, m.IsReversal())
	assert.Equal(t, entity.IdempotencyKey{SKU: "SKU001", OperationType: entity.OperationPicklist, ReferenceID: "reversal:PICK-1"}, m.Key())
}
