package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

// DriftRepository persiste los eventos de desviación detectados por la conciliación.
type DriftRepository interface {
	Create(ctx context.Context, event *entity.DriftEvent) error
	// CountSince cuenta las correcciones de la SKU desde since (para escalar recurrencias).
	CountSince(ctx context.Context, sku string, since time.Time) (int, error)
	// ListBySKU devuelve los eventos más recientes primero.
	ListBySKU(ctx context.Context, sku string, limit, offset int) ([]*entity.DriftEvent, error)
}
