package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

var _ repository.MovementLogRepository = (*MovementLogRepo)(nil)

const movementColumns = `id, sku, operation_type, quantity_change, previous_quantity, new_quantity,
	reference_id, details, performed_by, created_at`

// MovementLogRepo log append-only sobre inventory_movements (usable con pool o tx).
type MovementLogRepo struct {
	q Querier
}

// NewMovementLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementLogRepository(q Querier) *MovementLogRepo {
	return &MovementLogRepo{q: q}
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var m entity.Movement
	var details []byte
	err := row.Scan(
		&m.ID, &m.SKU, &m.OperationType, &m.QuantityChange, &m.PreviousQuantity, &m.NewQuantity,
		&m.ReferenceID, &details, &m.PerformedBy, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &m.Details); err != nil {
			return nil, fmt.Errorf("details de movimiento %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

// Append inserta el movimiento. La restricción única (sku, operation_type, reference_id) es la
// garantía final de idempotencia.
func (r *MovementLogRepo) Append(ctx context.Context, m *entity.Movement) error {
	var details []byte
	if len(m.Details) > 0 {
		b, err := json.Marshal(m.Details)
		if err != nil {
			return &domain.ValidationError{Field: "details", Reason: "no serializable"}
		}
		details = b
	}
	query := `
		INSERT INTO inventory_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.SKU, string(m.OperationType), m.QuantityChange, m.PreviousQuantity, m.NewQuantity,
		m.ReferenceID, details, m.PerformedBy, m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.DuplicateOperationError{SKU: m.SKU, OperationType: string(m.OperationType), ReferenceID: m.ReferenceID}
		}
		return classify("append movement", m.SKU, err)
	}
	return nil
}

// Find busca por clave de idempotencia.
func (r *MovementLogRepo) Find(ctx context.Context, key entity.IdempotencyKey) (*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM inventory_movements
		WHERE sku = $1 AND operation_type = $2 AND reference_id = $3`
	m, err := scanMovement(r.q.QueryRow(ctx, query, key.SKU, string(key.OperationType), key.ReferenceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("find movement", key.SKU, err)
	}
	return m, nil
}

// Fold agrega en la BD: la suma por tipo de operación es el valor de cada contador.
func (r *MovementLogRepo) Fold(ctx context.Context, sku string) (*entity.LedgerRecord, error) {
	query := `
		SELECT operation_type, COALESCE(SUM(quantity_change), 0), MAX(created_at)
		FROM inventory_movements WHERE sku = $1
		GROUP BY operation_type`
	rows, err := r.q.Query(ctx, query, sku)
	if err != nil {
		return nil, classify("fold movements", sku, err)
	}
	defer rows.Close()

	rec := &entity.LedgerRecord{SKU: sku}
	for rows.Next() {
		var op string
		var sum decimal.Decimal
		var last time.Time
		if err := rows.Scan(&op, &sum, &last); err != nil {
			return nil, classify("fold movements", sku, err)
		}
		t, ok := entity.ParseOperationType(op)
		if !ok {
			continue
		}
		rec.Counters.Set(t.Counter(), sum)
		if last.After(rec.UpdatedAt) {
			rec.UpdatedAt = last
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fold movements", sku, err)
	}
	rec.Recompute()
	return rec, nil
}

// History lista movimientos de la SKU en el rango (inclusivo), ascendente.
func (r *MovementLogRepo) History(ctx context.Context, filter repository.HistoryFilter) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM inventory_movements WHERE sku = $1`
	args := []any{filter.SKU}
	pos := 2
	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", pos)
		args = append(args, *filter.From)
		pos++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", pos)
		args = append(args, *filter.To)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("movement history", filter.SKU, err)
	}
	defer rows.Close()
	var list []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, classify("movement history", filter.SKU, err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("movement history", filter.SKU, err)
	}
	return list, nil
}

// ListSKUs pagina las SKUs presentes en el log.
func (r *MovementLogRepo) ListSKUs(ctx context.Context, afterSKU string, limit int) ([]string, error) {
	return listSKUs(ctx, r.q, `SELECT DISTINCT sku FROM inventory_movements WHERE sku > $1 ORDER BY sku LIMIT $2`, afterSKU, limit)
}
