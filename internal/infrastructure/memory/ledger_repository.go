package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo implementación en memoria del Ledger Store. Con tx == nil escribe directo.
type LedgerRepo struct {
	s  *Store
	tx *tx
}

// current devuelve una copia del registro visible para esta transacción (o nil).
func (r *LedgerRepo) current(sku string) *entity.LedgerRecord {
	if r.tx != nil {
		if p, ok := r.tx.ledger[sku]; ok {
			return p.rec.Clone()
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if rec, ok := r.s.ledger[sku]; ok {
		return rec.Clone()
	}
	return nil
}

func (r *LedgerRepo) Get(_ context.Context, sku string) (*entity.LedgerRecord, error) {
	return r.current(sku), nil
}

func (r *LedgerRepo) GetOrCreate(_ context.Context, sku string) (*entity.LedgerRecord, error) {
	if rec := r.current(sku); rec != nil {
		return rec, nil
	}
	if r.tx != nil {
		// dentro de la tx la fila en cero solo existe si se confirma una escritura.
		return entity.NewLedgerRecord(sku, r.s.now()), nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.ledger[sku]
	if !ok {
		rec = entity.NewLedgerRecord(sku, r.s.now())
		r.s.ledger[sku] = rec
	}
	return rec.Clone(), nil
}

// GetForUpdate no bloquea: la verificación de versión al confirmar da la misma garantía.
func (r *LedgerRepo) GetForUpdate(ctx context.Context, sku string) (*entity.LedgerRecord, error) {
	return r.Get(ctx, sku)
}

func (r *LedgerRepo) ApplyDelta(_ context.Context, sku string, counter entity.Counter, delta decimal.Decimal, expectedVersion int64) (*entity.LedgerRecord, error) {
	if !counter.Valid() {
		return nil, &domain.ValidationError{Field: "counter", Reason: "desconocido"}
	}
	rec := r.current(sku)
	if rec == nil {
		rec = entity.NewLedgerRecord(sku, r.s.now())
	}
	if rec.Version != expectedVersion {
		return nil, &domain.VersionConflictError{SKU: sku, Expected: expectedVersion, Actual: rec.Version}
	}
	if err := rec.CheckDelta(counter, delta); err != nil {
		return nil, err
	}
	rec.ApplyDelta(counter, delta, r.s.now())
	if err := r.write(rec, expectedVersion); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (r *LedgerRepo) Overwrite(_ context.Context, record *entity.LedgerRecord, expectedVersion int64) (*entity.LedgerRecord, error) {
	var actual int64
	if cur := r.current(record.SKU); cur != nil {
		actual = cur.Version
	}
	if actual != expectedVersion {
		return nil, &domain.VersionConflictError{SKU: record.SKU, Expected: expectedVersion, Actual: actual}
	}
	// mismas restricciones CHECK que inventory_ledger.
	for _, c := range entity.AllCounters {
		if record.Counters.Get(c).IsNegative() {
			return nil, &domain.InsufficientQuantityError{SKU: record.SKU, Counter: string(c)}
		}
	}
	if record.Picklist.GreaterThan(record.Putaway) {
		return nil, &domain.InsufficientQuantityError{SKU: record.SKU, Counter: string(entity.CounterPutaway)}
	}
	rec := &entity.LedgerRecord{
		SKU:       record.SKU,
		Counters:  record.Counters,
		UpdatedAt: r.s.now(),
		Version:   expectedVersion + 1,
	}
	rec.Recompute()
	if err := r.write(rec, expectedVersion); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// write bufferiza en la tx o escribe con CAS en modo autocommit.
func (r *LedgerRepo) write(rec *entity.LedgerRecord, base int64) error {
	if r.tx != nil {
		if p, ok := r.tx.ledger[rec.SKU]; ok {
			p.rec = rec.Clone()
			return nil
		}
		r.tx.ledger[rec.SKU] = &pending{rec: rec.Clone(), base: base}
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var actual int64
	if cur, ok := r.s.ledger[rec.SKU]; ok {
		actual = cur.Version
	}
	if actual != base {
		return &domain.VersionConflictError{SKU: rec.SKU, Expected: base, Actual: actual}
	}
	r.s.ledger[rec.SKU] = rec.Clone()
	return nil
}

func (r *LedgerRepo) ListSKUs(_ context.Context, afterSKU string, limit int) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return sortedKeys(r.s.ledger, afterSKU, limit), nil
}
