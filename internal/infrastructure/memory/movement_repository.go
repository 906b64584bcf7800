package memory

import (
	"context"

	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

var _ repository.MovementLogRepository = (*MovementRepo)(nil)

// MovementRepo Movement Log en memoria. Solo agrega; nunca modifica ni borra.
type MovementRepo struct {
	s  *Store
	tx *tx
}

func (r *MovementRepo) Append(_ context.Context, m *entity.Movement) error {
	key := m.Key()
	dup := &domain.DuplicateOperationError{SKU: m.SKU, OperationType: string(m.OperationType), ReferenceID: m.ReferenceID}
	if r.tx != nil {
		if _, ok := r.tx.keys[key]; ok {
			return dup
		}
		r.s.mu.RLock()
		_, ok := r.s.keys[key]
		r.s.mu.RUnlock()
		if ok {
			return dup
		}
		c := cloneMovement(m)
		r.tx.keys[key] = c
		r.tx.movements = append(r.tx.movements, c)
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.keys[key]; ok {
		return dup
	}
	r.s.insertMovementLocked(cloneMovement(m))
	return nil
}

func (r *MovementRepo) Find(_ context.Context, key entity.IdempotencyKey) (*entity.Movement, error) {
	if r.tx != nil {
		if m, ok := r.tx.keys[key]; ok {
			return cloneMovement(m), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if m, ok := r.s.keys[key]; ok {
		return cloneMovement(m), nil
	}
	return nil, nil
}

// Fold reconstruye los contadores desde el log confirmado (más lo pendiente en la tx).
func (r *MovementRepo) Fold(_ context.Context, sku string) (*entity.LedgerRecord, error) {
	r.s.mu.RLock()
	movements := make([]*entity.Movement, 0, len(r.s.movements[sku]))
	movements = append(movements, r.s.movements[sku]...)
	r.s.mu.RUnlock()
	if r.tx != nil {
		for _, m := range r.tx.movements {
			if m.SKU == sku {
				movements = append(movements, m)
			}
		}
	}
	return entity.Fold(sku, movements), nil
}

func (r *MovementRepo) History(_ context.Context, filter repository.HistoryFilter) ([]*entity.Movement, error) {
	r.s.mu.RLock()
	all := make([]*entity.Movement, 0, len(r.s.movements[filter.SKU]))
	for _, m := range r.s.movements[filter.SKU] {
		all = append(all, cloneMovement(m))
	}
	r.s.mu.RUnlock()

	entity.SortMovements(all)
	out := make([]*entity.Movement, 0, len(all))
	skipped := 0
	for _, m := range all {
		if filter.From != nil && m.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.CreatedAt.After(*filter.To) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *MovementRepo) ListSKUs(_ context.Context, afterSKU string, limit int) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return sortedKeys(r.s.movements, afterSKU, limit), nil
}
