package ledger

import (
	"context"
	"time"

	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	// límite de filas incluidas en un reporte PDF.
	maxReportRows = 5000
)

// MovementReportRenderer genera la representación PDF del historial de una SKU.
type MovementReportRenderer interface {
	RenderMovementReport(ctx context.Context, snapshot *Snapshot, movements []*entity.Movement, from, to *time.Time) ([]byte, error)
}

// AuditService consultas de solo lectura sobre el log de movimientos y los eventos de desviación.
type AuditService struct {
	movRepo   repository.MovementLogRepository
	driftRepo repository.DriftRepository
	summary   *SummaryView
	renderer  MovementReportRenderer
}

// NewAuditService construye el servicio. renderer puede ser nil (reporte deshabilitado).
func NewAuditService(
	movRepo repository.MovementLogRepository,
	driftRepo repository.DriftRepository,
	summary *SummaryView,
	renderer MovementReportRenderer,
) *AuditService {
	return &AuditService{movRepo: movRepo, driftRepo: driftRepo, summary: summary, renderer: renderer}
}

// History devuelve movimientos de la SKU en [from, to], ascendente, paginado.
func (s *AuditService) History(ctx context.Context, filter repository.HistoryFilter) ([]*entity.Movement, error) {
	sku, err := ValidateSKU(filter.SKU)
	if err != nil {
		return nil, err
	}
	filter.SKU = sku
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, &domain.ValidationError{Field: "to", Reason: "es anterior a from"}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.movRepo.History(ctx, filter)
}

// DriftEvents lista las correcciones registradas para la SKU, más recientes primero.
func (s *AuditService) DriftEvents(ctx context.Context, sku string, limit, offset int) ([]*entity.DriftEvent, error) {
	sku, err := ValidateSKU(sku)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.driftRepo.ListBySKU(ctx, sku, limit, offset)
}

// Report genera el PDF del historial de la SKU en el rango.
func (s *AuditService) Report(ctx context.Context, sku string, from, to *time.Time) ([]byte, error) {
	if s.renderer == nil {
		return nil, domain.ErrNotFound
	}
	snap, err := s.summary.Snapshot(ctx, sku)
	if err != nil {
		return nil, err
	}
	movements, err := s.movRepo.History(ctx, repository.HistoryFilter{
		SKU:   snap.Record.SKU,
		From:  from,
		To:    to,
		Limit: maxReportRows,
	})
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderMovementReport(ctx, snap, movements, from, to)
}
