package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

// Snapshot proyección de solo lectura de una SKU.
type Snapshot struct {
	Record              *entity.LedgerRecord
	AvailableForPicking decimal.Decimal
	TotalInventory      decimal.Decimal
}

// Summarize calcula la proyección a partir del registro.
func Summarize(rec *entity.LedgerRecord) *Snapshot {
	return &Snapshot{
		Record:              rec,
		AvailableForPicking: rec.Counters.Available(),
		TotalInventory:      rec.Counters.TotalInventory(),
	}
}

// SummaryView deriva los campos de resumen leyendo siempre el Ledger Store, que es la única
// fuente de los contadores vivos. Nunca escribe el ledger.
type SummaryView struct {
	ledgerRepo repository.LedgerRepository
}

// NewSummaryView construye la vista.
func NewSummaryView(ledgerRepo repository.LedgerRepository) *SummaryView {
	return &SummaryView{ledgerRepo: ledgerRepo}
}

// Snapshot devuelve el estado actual de la SKU. domain.ErrNotFound si nunca tuvo movimientos.
func (v *SummaryView) Snapshot(ctx context.Context, sku string) (*Snapshot, error) {
	sku, err := ValidateSKU(sku)
	if err != nil {
		return nil, err
	}
	rec, err := v.ledgerRepo.Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return Summarize(rec), nil
}

// Snapshots devuelve las SKUs existentes de la lista; las inexistentes se omiten.
func (v *SummaryView) Snapshots(ctx context.Context, skus []string) ([]*Snapshot, error) {
	out := make([]*Snapshot, 0, len(skus))
	for _, sku := range skus {
		s, err := v.Snapshot(ctx, sku)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
