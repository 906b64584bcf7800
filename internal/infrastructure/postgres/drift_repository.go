package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

var _ repository.DriftRepository = (*DriftRepo)(nil)

// DriftRepo historial de correcciones de la conciliación (inventory_drift_events).
type DriftRepo struct {
	q Querier
}

// NewDriftRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDriftRepository(q Querier) *DriftRepo {
	return &DriftRepo{q: q}
}

func (r *DriftRepo) Create(ctx context.Context, ev *entity.DriftEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	prev, err := json.Marshal(ev.Previous)
	if err != nil {
		return domain.Persistence("create drift event", err)
	}
	corrected, err := json.Marshal(ev.Corrected)
	if err != nil {
		return domain.Persistence("create drift event", err)
	}
	query := `
		INSERT INTO inventory_drift_events (id, sku, previous, corrected, previous_version, new_version, source, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.q.Exec(ctx, query, ev.ID, ev.SKU, prev, corrected, ev.PreviousVersion, ev.NewVersion, ev.Source, ev.DetectedAt)
	if err != nil {
		return classify("create drift event", ev.SKU, err)
	}
	return nil
}

func (r *DriftRepo) CountSince(ctx context.Context, sku string, since time.Time) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM inventory_drift_events WHERE sku = $1 AND detected_at >= $2`, sku, since,
	).Scan(&n)
	if err != nil {
		return 0, classify("count drift events", sku, err)
	}
	return n, nil
}

func (r *DriftRepo) ListBySKU(ctx context.Context, sku string, limit, offset int) ([]*entity.DriftEvent, error) {
	query := `
		SELECT id, sku, previous, corrected, previous_version, new_version, source, detected_at
		FROM inventory_drift_events WHERE sku = $1
		ORDER BY detected_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, sku, limit, offset)
	if err != nil {
		return nil, classify("list drift events", sku, err)
	}
	defer rows.Close()
	var list []*entity.DriftEvent
	for rows.Next() {
		var ev entity.DriftEvent
		var prev, corrected []byte
		if err := rows.Scan(&ev.ID, &ev.SKU, &prev, &corrected, &ev.PreviousVersion, &ev.NewVersion, &ev.Source, &ev.DetectedAt); err != nil {
			return nil, classify("list drift events", sku, err)
		}
		if err := json.Unmarshal(prev, &ev.Previous); err != nil {
			return nil, domain.Persistence("list drift events", fmt.Errorf("previous: %w", err))
		}
		if err := json.Unmarshal(corrected, &ev.Corrected); err != nil {
			return nil, domain.Persistence("list drift events", fmt.Errorf("corrected: %w", err))
		}
		list = append(list, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list drift events", sku, err)
	}
	return list, nil
}
