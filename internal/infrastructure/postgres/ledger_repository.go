package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

const ledgerColumns = `sku, po_quantity, grn_quantity, putaway_quantity, picklist_quantity,
	return_try_and_buy_quantity, return_other_quantity, total_available_quantity, updated_at, version`

// LedgerRepo implementación del Ledger Store sobre PostgreSQL (usable con pool o tx).
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

func scanLedger(row pgx.Row) (*entity.LedgerRecord, error) {
	var rec entity.LedgerRecord
	err := row.Scan(
		&rec.SKU, &rec.PO, &rec.GRN, &rec.Putaway, &rec.Picklist,
		&rec.ReturnTryAndBuy, &rec.ReturnOther, &rec.TotalAvailableQuantity, &rec.UpdatedAt, &rec.Version,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *LedgerRepo) get(ctx context.Context, sku, suffix string) (*entity.LedgerRecord, error) {
	query := `SELECT ` + ledgerColumns + ` FROM inventory_ledger WHERE sku = $1` + suffix
	rec, err := scanLedger(r.q.QueryRow(ctx, query, sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get ledger", sku, err)
	}
	return rec, nil
}

// Get devuelve el registro o nil.
func (r *LedgerRepo) Get(ctx context.Context, sku string) (*entity.LedgerRecord, error) {
	return r.get(ctx, sku, "")
}

// GetForUpdate bloquea la fila hasta el fin de la transacción.
func (r *LedgerRepo) GetForUpdate(ctx context.Context, sku string) (*entity.LedgerRecord, error) {
	return r.get(ctx, sku, " FOR UPDATE")
}

// GetOrCreate inicializa la fila en cero si no existe.
func (r *LedgerRepo) GetOrCreate(ctx context.Context, sku string) (*entity.LedgerRecord, error) {
	query := `INSERT INTO inventory_ledger (sku, updated_at) VALUES ($1, now()) ON CONFLICT (sku) DO NOTHING`
	if _, err := r.q.Exec(ctx, query, sku); err != nil {
		return nil, classify("init ledger", sku, err)
	}
	rec, err := r.Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.Persistence("init ledger", fmt.Errorf("fila %s no visible tras insertar", sku))
	}
	return rec, nil
}

// ApplyDelta suma delta al contador en un único UPDATE condicionado por versión y por las reglas
// de no negatividad y picklist <= putaway. Si no actualiza filas, relee para distinguir la causa.
func (r *LedgerRepo) ApplyDelta(ctx context.Context, sku string, counter entity.Counter, delta decimal.Decimal, expectedVersion int64) (*entity.LedgerRecord, error) {
	if !counter.Valid() {
		return nil, &domain.ValidationError{Field: "counter", Reason: "desconocido"}
	}
	putawayDelta, picklistDelta := decimal.Zero, decimal.Zero
	switch counter {
	case entity.CounterPutaway:
		putawayDelta = delta
	case entity.CounterPicklist:
		picklistDelta = delta
	}
	col := string(counter) // validado contra AllCounters
	query := fmt.Sprintf(`
		UPDATE inventory_ledger SET
			%[1]s = %[1]s + $2,
			total_available_quantity = (putaway_quantity + $3) - (picklist_quantity + $4),
			version = version + 1,
			updated_at = now()
		WHERE sku = $1 AND version = $5
			AND %[1]s + $2 >= 0
			AND picklist_quantity + $4 <= putaway_quantity + $3
		RETURNING %[2]s`, col, ledgerColumns)

	rec, err := scanLedger(r.q.QueryRow(ctx, query, sku, delta, putawayDelta, picklistDelta, expectedVersion))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, classify("apply delta", sku, err)
	}

	cur, err := r.Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, &domain.VersionConflictError{SKU: sku, Expected: expectedVersion}
	}
	if cur.Version != expectedVersion {
		return nil, &domain.VersionConflictError{SKU: sku, Expected: expectedVersion, Actual: cur.Version}
	}
	if err := cur.CheckDelta(counter, delta); err != nil {
		return nil, err
	}
	return nil, domain.Persistence("apply delta", fmt.Errorf("update sin filas para %s", sku))
}

// Overwrite reemplaza los contadores con CAS de versión. Con expectedVersion 0 crea la fila si falta.
func (r *LedgerRepo) Overwrite(ctx context.Context, record *entity.LedgerRecord, expectedVersion int64) (*entity.LedgerRecord, error) {
	c := record.Counters
	available := c.Available()
	args := []any{
		record.SKU, c.PO, c.GRN, c.Putaway, c.Picklist, c.ReturnTryAndBuy, c.ReturnOther,
		available, expectedVersion,
	}
	var query string
	if expectedVersion == 0 {
		query = `
			INSERT INTO inventory_ledger (sku, po_quantity, grn_quantity, putaway_quantity, picklist_quantity,
				return_try_and_buy_quantity, return_other_quantity, total_available_quantity, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), $9::bigint + 1)
			ON CONFLICT (sku) DO UPDATE SET
				po_quantity = EXCLUDED.po_quantity,
				grn_quantity = EXCLUDED.grn_quantity,
				putaway_quantity = EXCLUDED.putaway_quantity,
				picklist_quantity = EXCLUDED.picklist_quantity,
				return_try_and_buy_quantity = EXCLUDED.return_try_and_buy_quantity,
				return_other_quantity = EXCLUDED.return_other_quantity,
				total_available_quantity = EXCLUDED.total_available_quantity,
				updated_at = now(),
				version = inventory_ledger.version + 1
			WHERE inventory_ledger.version = $9::bigint
			RETURNING ` + ledgerColumns
	} else {
		query = `
			UPDATE inventory_ledger SET
				po_quantity = $2, grn_quantity = $3, putaway_quantity = $4, picklist_quantity = $5,
				return_try_and_buy_quantity = $6, return_other_quantity = $7,
				total_available_quantity = $8, updated_at = now(), version = version + 1
			WHERE sku = $1 AND version = $9
			RETURNING ` + ledgerColumns
	}
	rec, err := scanLedger(r.q.QueryRow(ctx, query, args...))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, classify("overwrite ledger", record.SKU, err)
	}
	cur, err := r.Get(ctx, record.SKU)
	if err != nil {
		return nil, err
	}
	conflict := &domain.VersionConflictError{SKU: record.SKU, Expected: expectedVersion}
	if cur != nil {
		conflict.Actual = cur.Version
	}
	return nil, conflict
}

// ListSKUs pagina las SKUs del ledger por orden lexicográfico.
func (r *LedgerRepo) ListSKUs(ctx context.Context, afterSKU string, limit int) ([]string, error) {
	return listSKUs(ctx, r.q, `SELECT sku FROM inventory_ledger WHERE sku > $1 ORDER BY sku LIMIT $2`, afterSKU, limit)
}

func listSKUs(ctx context.Context, q Querier, query, after string, limit int) ([]string, error) {
	rows, err := q.Query(ctx, query, after, limit)
	if err != nil {
		return nil, classify("list skus", "", err)
	}
	skus, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify("list skus", "", err)
	}
	return skus, nil
}
