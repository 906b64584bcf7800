package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

// LedgerRepository define el puerto del Ledger Store (contadores vivos por SKU).
// No expone un setter incondicional: toda escritura pasa por ApplyDelta (Gateway)
// o por Overwrite con CAS de versión (conciliación).
type LedgerRepository interface {
	// Get devuelve el registro o nil si la SKU no tiene fila. Nunca crea.
	Get(ctx context.Context, sku string) (*entity.LedgerRecord, error)
	// GetOrCreate devuelve el registro existente o lo inicializa en cero (upsert).
	GetOrCreate(ctx context.Context, sku string) (*entity.LedgerRecord, error)
	// GetForUpdate bloquea la fila (SELECT FOR UPDATE) dentro de la transacción actual.
	// Devuelve nil si la fila no existe.
	GetForUpdate(ctx context.Context, sku string) (*entity.LedgerRecord, error)
	// ApplyDelta ajusta un contador, recalcula el disponible e incrementa la versión.
	// Errores: *domain.InsufficientQuantityError, *domain.VersionConflictError.
	ApplyDelta(ctx context.Context, sku string, counter entity.Counter, delta decimal.Decimal, expectedVersion int64) (*entity.LedgerRecord, error)
	// Overwrite reemplaza todos los contadores si la versión almacenada es expectedVersion.
	// Crea la fila si expectedVersion es 0 y no existe.
	Overwrite(ctx context.Context, record *entity.LedgerRecord, expectedVersion int64) (*entity.LedgerRecord, error)
	// ListSKUs pagina SKUs por orden lexicográfico, estrictamente después de afterSKU.
	ListSKUs(ctx context.Context, afterSKU string, limit int) ([]string, error)
}
