package memory

import (
	"context"
	"time"

	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

var _ repository.DriftRepository = (*DriftRepo)(nil)

// DriftRepo historial de correcciones en memoria.
type DriftRepo struct {
	s  *Store
	tx *tx
}

func (r *DriftRepo) Create(_ context.Context, ev *entity.DriftEvent) error {
	c := *ev
	if r.tx != nil {
		r.tx.drift = append(r.tx.drift, &c)
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.drift[c.SKU] = append(r.s.drift[c.SKU], &c)
	return nil
}

func (r *DriftRepo) CountSince(_ context.Context, sku string, since time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, ev := range r.s.drift[sku] {
		if !ev.DetectedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *DriftRepo) ListBySKU(_ context.Context, sku string, limit, offset int) ([]*entity.DriftEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	events := r.s.drift[sku]
	out := make([]*entity.DriftEvent, 0, limit)
	for i := len(events) - 1 - offset; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		c := *events[i]
		out = append(out, &c)
	}
	return out, nil
}
