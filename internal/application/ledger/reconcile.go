package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

// ReconcileConfig parámetros de la conciliación.
type ReconcileConfig struct {
	BatchSize           int
	Workers             int
	MaxAttempts         int
	EscalationThreshold int
	EscalationWindow    time.Duration
}

// ReconcileStatus resultado por SKU.
type ReconcileStatus string

const (
	StatusInSync    ReconcileStatus = "in_sync"
	StatusCorrected ReconcileStatus = "corrected"
	StatusSkipped   ReconcileStatus = "skipped"
	StatusFailed    ReconcileStatus = "failed"
)

// ReconcileResult detalle de la conciliación de una SKU.
type ReconcileResult struct {
	SKU       string
	Status    ReconcileStatus
	Before    *entity.LedgerRecord
	After     *entity.LedgerRecord
	Attempts  int
	Escalated bool
	Err       error
}

// BatchReport resumen de una corrida por lotes. Results solo incluye SKUs no sincronizadas.
type BatchReport struct {
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	Checked    int
	InSync     int
	Corrected  int
	Skipped    int
	Failed     int
	Escalated  []string
	Results    []*ReconcileResult
}

func (r *BatchReport) add(res *ReconcileResult) {
	r.Checked++
	switch res.Status {
	case StatusInSync:
		r.InSync++
		return
	case StatusCorrected:
		r.Corrected++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
	if res.Escalated {
		r.Escalated = append(r.Escalated, res.SKU)
	}
	r.Results = append(r.Results, res)
}

// ReconciliationEngine reconstruye los contadores desde el log y corrige la desviación del ledger.
// La lectura y el fold se hacen sin bloqueo; solo la corrección toma el bloqueo de la fila.
type ReconciliationEngine struct {
	txRunner   TxRunner
	ledgerRepo repository.LedgerRepository
	movRepo    repository.MovementLogRepository
	driftRepo  repository.DriftRepository
	cfg        ReconcileConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewReconciliationEngine construye el motor con repositorios atados al pool.
func NewReconciliationEngine(
	txRunner TxRunner,
	ledgerRepo repository.LedgerRepository,
	movRepo repository.MovementLogRepository,
	driftRepo repository.DriftRepository,
	cfg ReconcileConfig,
	log zerolog.Logger,
) *ReconciliationEngine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = 3
	}
	if cfg.EscalationWindow <= 0 {
		cfg.EscalationWindow = 24 * time.Hour
	}
	return &ReconciliationEngine{
		txRunner:   txRunner,
		ledgerRepo: ledgerRepo,
		movRepo:    movRepo,
		driftRepo:  driftRepo,
		cfg:        cfg,
		log:        log.With().Str("component", "reconciliation").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// errInSync señala que bajo bloqueo la fila ya coincide con el fold.
var errInSync = errors.New("registro ya sincronizado")

// ReconcileSKU concilia una SKU. Devuelve *domain.DriftDetectedError (junto con el resultado)
// cuando la corrección es recurrente por encima del umbral.
func (e *ReconciliationEngine) ReconcileSKU(ctx context.Context, sku, source string) (*ReconcileResult, error) {
	sku, err := ValidateSKU(sku)
	if err != nil {
		return nil, err
	}
	res := &ReconcileResult{SKU: sku}
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt

		live, err := e.ledgerRepo.Get(ctx, sku)
		if err != nil {
			return e.fail(res, err)
		}
		folded, err := e.movRepo.Fold(ctx, sku)
		if err != nil {
			return e.fail(res, err)
		}
		folded.SKU = sku
		res.Before = live
		if matches(live, folded) {
			res.Status = StatusInSync
			res.After = live
			return res, nil
		}

		var expected int64
		if live != nil {
			expected = live.Version
		}
		written, err := e.correct(ctx, sku, expected, folded, source)
		switch {
		case err == nil:
			res.Status = StatusCorrected
			res.After = written
			return e.afterCorrection(ctx, res, source)
		case errors.Is(err, errInSync):
			res.Status = StatusInSync
			res.After = live
			return res, nil
		case errors.Is(err, domain.ErrVersionConflict):
			// una escritura viva llegó entre la lectura y el bloqueo: el fold quedó viejo.
			e.log.Debug().Str("sku", sku).Int("attempt", attempt).Msg("ledger cambió durante la conciliación, reintentando")
			continue
		default:
			return e.fail(res, err)
		}
	}
	res.Status = StatusSkipped
	res.Err = &domain.LockTimeoutError{SKU: sku, Attempts: e.cfg.MaxAttempts}
	e.log.Warn().Str("sku", sku).Int("attempts", e.cfg.MaxAttempts).Msg("conciliación omitida por escrituras concurrentes")
	return res, res.Err
}

// correct toma el bloqueo de la fila, vuelve a verificar la versión y sobrescribe con el fold.
func (e *ReconciliationEngine) correct(ctx context.Context, sku string, expected int64, folded *entity.LedgerRecord, source string) (*entity.LedgerRecord, error) {
	var written *entity.LedgerRecord
	err := e.txRunner.Run(ctx, func(
		ledgerRepo repository.LedgerRepository,
		_ repository.MovementLogRepository,
		driftRepo repository.DriftRepository,
	) error {
		locked, err := ledgerRepo.GetForUpdate(ctx, sku)
		if err != nil {
			return err
		}
		var current int64
		var previous entity.Counters
		if locked != nil {
			current = locked.Version
			previous = locked.Counters
		}
		if current != expected {
			return &domain.VersionConflictError{SKU: sku, Expected: expected, Actual: current}
		}
		if matches(locked, folded) {
			return errInSync
		}
		written, err = ledgerRepo.Overwrite(ctx, folded, current)
		if err != nil {
			return err
		}
		return driftRepo.Create(ctx, &entity.DriftEvent{
			ID:              uuid.New().String(),
			SKU:             sku,
			Previous:        previous,
			Corrected:       written.Counters,
			PreviousVersion: current,
			NewVersion:      written.Version,
			Source:          source,
			DetectedAt:      e.now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func (e *ReconciliationEngine) afterCorrection(ctx context.Context, res *ReconcileResult, source string) (*ReconcileResult, error) {
	ev := e.log.Warn().
		Str("sku", res.SKU).
		Str("source", source).
		Int64("new_version", res.After.Version)
	if res.Before != nil {
		ev = ev.Int64("previous_version", res.Before.Version)
		for _, c := range entity.AllCounters {
			if !res.Before.Counters.Get(c).Equal(res.After.Counters.Get(c)) {
				ev = ev.Str(string(c), res.Before.Counters.Get(c).String()+" -> "+res.After.Counters.Get(c).String())
			}
		}
	}
	ev.Msg("desviación detectada y corregida")

	count, err := e.driftRepo.CountSince(ctx, res.SKU, e.now().Add(-e.cfg.EscalationWindow))
	if err != nil {
		e.log.Error().Err(err).Str("sku", res.SKU).Msg("no se pudo contar la recurrencia de desviaciones")
		return res, nil
	}
	if count >= e.cfg.EscalationThreshold {
		res.Escalated = true
		res.Err = &domain.DriftDetectedError{SKU: res.SKU, Occurrences: count, Threshold: e.cfg.EscalationThreshold}
		e.log.Error().
			Str("sku", res.SKU).
			Int("occurrences", count).
			Dur("window", e.cfg.EscalationWindow).
			Msg("desviación recurrente: revisar escrituras fuera del gateway")
		return res, res.Err
	}
	return res, nil
}

func (e *ReconciliationEngine) fail(res *ReconcileResult, err error) (*ReconcileResult, error) {
	res.Status = StatusFailed
	res.Err = err
	e.log.Error().Err(err).Str("sku", res.SKU).Msg("conciliación fallida")
	return res, err
}

// ReconcileBatch concilia las SKUs indicadas con un pool acotado de workers.
// Los errores por SKU quedan en el reporte; solo la cancelación del contexto aborta.
func (e *ReconciliationEngine) ReconcileBatch(ctx context.Context, skus []string, source string) (*BatchReport, error) {
	report := &BatchReport{Source: source, StartedAt: e.now()}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for _, sku := range skus {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := e.ReconcileSKU(ctx, sku, source)
			if res == nil {
				res = &ReconcileResult{SKU: sku, Status: StatusFailed, Err: err}
			}
			mu.Lock()
			report.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].SKU < report.Results[j].SKU })
	report.FinishedAt = e.now()
	return report, ctx.Err()
}

// ReconcileAll recorre todas las SKUs del ledger y del log (unión) en lotes de BatchSize.
func (e *ReconciliationEngine) ReconcileAll(ctx context.Context, source string) (*BatchReport, error) {
	skus, err := e.allSKUs(ctx)
	if err != nil {
		return nil, err
	}
	total := &BatchReport{Source: source, StartedAt: e.now()}
	for start := 0; start < len(skus); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(skus))
		part, err := e.ReconcileBatch(ctx, skus[start:end], source)
		if part != nil {
			total.merge(part)
		}
		if err != nil {
			total.FinishedAt = e.now()
			return total, err
		}
	}
	total.FinishedAt = e.now()
	e.log.Info().
		Str("source", source).
		Int("checked", total.Checked).
		Int("corrected", total.Corrected).
		Int("skipped", total.Skipped).
		Int("failed", total.Failed).
		Dur("elapsed", total.FinishedAt.Sub(total.StartedAt)).
		Msg("conciliación completa")
	return total, nil
}

func (r *BatchReport) merge(o *BatchReport) {
	r.Checked += o.Checked
	r.InSync += o.InSync
	r.Corrected += o.Corrected
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	r.Escalated = append(r.Escalated, o.Escalated...)
	r.Results = append(r.Results, o.Results...)
}

func (e *ReconciliationEngine) allSKUs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	pages := []func(context.Context, string, int) ([]string, error){
		e.ledgerRepo.ListSKUs,
		e.movRepo.ListSKUs,
	}
	for _, list := range pages {
		after := ""
		for {
			page, err := list(ctx, after, e.cfg.BatchSize)
			if err != nil {
				return nil, err
			}
			for _, sku := range page {
				seen[sku] = struct{}{}
			}
			if len(page) < e.cfg.BatchSize {
				break
			}
			after = page[len(page)-1]
		}
	}
	skus := make([]string, 0, len(seen))
	for sku := range seen {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus, nil
}

// matches compara el registro vivo con el fold. Una fila ausente equivale a todo en cero.
func matches(live, folded *entity.LedgerRecord) bool {
	if live == nil {
		return folded.Counters.Equal(entity.Counters{})
	}
	return live.Counters.Equal(folded.Counters) &&
		live.TotalAvailableQuantity.Equal(folded.TotalAvailableQuantity)
}
