package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

// HistoryFilter filtros del historial de movimientos (rango inclusivo, orden ascendente).
type HistoryFilter struct {
	SKU    string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// MovementLogRepository define el puerto del log de movimientos (append-only).
type MovementLogRepository interface {
	// Append inserta un movimiento. *domain.DuplicateOperationError si la clave ya existe.
	Append(ctx context.Context, movement *entity.Movement) error
	// Find devuelve el movimiento de la clave de idempotencia o nil.
	Find(ctx context.Context, key entity.IdempotencyKey) (*entity.Movement, error)
	// Fold reproduce todos los movimientos de la SKU y devuelve los contadores canónicos.
	Fold(ctx context.Context, sku string) (*entity.LedgerRecord, error)
	// History lista movimientos de la SKU en el rango, paginado.
	History(ctx context.Context, filter HistoryFilter) ([]*entity.Movement, error)
	// ListSKUs pagina las SKUs presentes en el log, estrictamente después de afterSKU.
	ListSKUs(ctx context.Context, afterSKU string, limit int) ([]string, error)
}
