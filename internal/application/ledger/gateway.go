package ledger

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

// GatewayConfig límites de reintento ante contención optimista.
type GatewayConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Gateway es el único punto de entrada que muta los contadores del ledger.
// Cada movimiento escribe Ledger Store y Movement Log en una sola transacción.
type Gateway struct {
	txRunner   TxRunner
	ledgerRepo repository.LedgerRepository
	movRepo    repository.MovementLogRepository
	cfg        GatewayConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewGateway construye el gateway. ledgerRepo y movRepo son las instancias atadas al pool,
// usadas solo para lecturas fuera de transacción.
func NewGateway(
	txRunner TxRunner,
	ledgerRepo repository.LedgerRepository,
	movRepo repository.MovementLogRepository,
	cfg GatewayConfig,
	log zerolog.Logger,
) *Gateway {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Millisecond
	}
	return &Gateway{
		txRunner:   txRunner,
		ledgerRepo: ledgerRepo,
		movRepo:    movRepo,
		cfg:        cfg,
		log:        log.With().Str("component", "gateway").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RecordPurchaseOrder acredita po_quantity (flujo de compras).
func (g *Gateway) RecordPurchaseOrder(ctx context.Context, sku string, quantity decimal.Decimal, referenceID, performedBy string, details map[string]any) (*entity.LedgerRecord, error) {
	return g.recordAs(ctx, entity.OperationPO, sku, quantity, referenceID, performedBy, details)
}

// RecordGoodsReceived acredita grn_quantity con la cantidad que pasó QC.
func (g *Gateway) RecordGoodsReceived(ctx context.Context, sku string, quantity decimal.Decimal, referenceID, performedBy string, details map[string]any) (*entity.LedgerRecord, error) {
	return g.recordAs(ctx, entity.OperationGRN, sku, quantity, referenceID, performedBy, details)
}

// RecordPutaway acredita putaway_quantity al completar una tarea de ubicación.
func (g *Gateway) RecordPutaway(ctx context.Context, sku string, quantity decimal.Decimal, referenceID, performedBy string, details map[string]any) (*entity.LedgerRecord, error) {
	return g.recordAs(ctx, entity.OperationPutaway, sku, quantity, referenceID, performedBy, details)
}

// RecordPicklistReservation reserva unidades ubicadas; nunca por encima de putaway_quantity.
func (g *Gateway) RecordPicklistReservation(ctx context.Context, sku string, quantity decimal.Decimal, referenceID, performedBy string, details map[string]any) (*entity.LedgerRecord, error) {
	return g.recordAs(ctx, entity.OperationPicklist, sku, quantity, referenceID, performedBy, details)
}

// RecordReturnTryAndBuy acredita return_try_and_buy_quantity.
func (g *Gateway) RecordReturnTryAndBuy(ctx context.Context, sku string, quantity decimal.Decimal, referenceID, performedBy string, details map[string]any) (*entity.LedgerRecord, error) {
	return g.recordAs(ctx, entity.OperationReturnTryAndBuy, sku, quantity, referenceID, performedBy, details)
}

// RecordReturnOther acredita return_other_quantity.
func (g *Gateway) RecordReturnOther(ctx context.Context, sku string, quantity decimal.Decimal, referenceID, performedBy string, details map[string]any) (*entity.LedgerRecord, error) {
	return g.recordAs(ctx, entity.OperationReturnOther, sku, quantity, referenceID, performedBy, details)
}

func (g *Gateway) recordAs(ctx context.Context, op entity.OperationType, sku string, quantity decimal.Decimal, referenceID, performedBy string, details map[string]any) (*entity.LedgerRecord, error) {
	out, err := g.Record(ctx, Command{
		OperationType: op,
		SKU:           sku,
		Quantity:      quantity,
		ReferenceID:   referenceID,
		PerformedBy:   performedBy,
		Details:       details,
	})
	if err != nil {
		return nil, err
	}
	return out.Record, nil
}

// Record aplica un movimiento de crédito. Si la clave de idempotencia ya existe devuelve
// el registro actual con Duplicate=true y sin error.
func (g *Gateway) Record(ctx context.Context, cmd Command) (*Outcome, error) {
	if err := cmd.normalize(); err != nil {
		return nil, err
	}
	return g.apply(ctx, plan{
		key: entity.IdempotencyKey{
			SKU:           cmd.SKU,
			OperationType: cmd.OperationType,
			ReferenceID:   cmd.ReferenceID,
		},
		delta:       cmd.Quantity,
		performedBy: cmd.PerformedBy,
		details:     cmd.Details,
	})
}

// Reverse agrega un movimiento compensatorio de signo opuesto para un movimiento existente.
// Su reference_id es "reversal:" + referenceID, por lo que es idempotente.
// Revertir un putaway no puede dejar putaway_quantity por debajo de picklist_quantity.
func (g *Gateway) Reverse(ctx context.Context, sku string, op entity.OperationType, referenceID, performedBy, reason string) (*Outcome, error) {
	if !op.Valid() {
		return nil, &domain.ValidationError{Field: "operation_type", Reason: "no soportado"}
	}
	sku, err := ValidateSKU(sku)
	if err != nil {
		return nil, err
	}
	ref, err := validateReference(referenceID)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(ref, entity.ReversalPrefix) {
		return nil, &domain.ValidationError{Field: "reference_id", Reason: "no se puede revertir una reversión"}
	}
	original, err := g.movRepo.Find(ctx, entity.IdempotencyKey{SKU: sku, OperationType: op, ReferenceID: ref})
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, domain.ErrNotFound
	}
	details := map[string]any{"reverses": original.ID}
	if reason = strings.TrimSpace(reason); reason != "" {
		details["reason"] = reason
	}
	return g.apply(ctx, plan{
		key: entity.IdempotencyKey{
			SKU:           sku,
			OperationType: op,
			ReferenceID:   entity.ReversalPrefix + ref,
		},
		delta:       original.QuantityChange.Neg(),
		performedBy: actor(performedBy),
		details:     details,
	})
}

type plan struct {
	key         entity.IdempotencyKey
	delta       decimal.Decimal
	performedBy string
	details     map[string]any
}

// apply ejecuta el algoritmo del gateway con reintentos acotados ante conflicto de versión.
func (g *Gateway) apply(ctx context.Context, p plan) (*Outcome, error) {
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		out, err := g.attempt(ctx, p)
		switch {
		case err == nil:
			out.Attempts = attempt
			g.log.Debug().
				Str("sku", p.key.SKU).
				Str("operation", string(p.key.OperationType)).
				Str("reference_id", p.key.ReferenceID).
				Str("delta", p.delta.String()).
				Int64("version", out.Record.Version).
				Int("attempts", attempt).
				Msg("movimiento aplicado")
			return out, nil
		case errors.Is(err, domain.ErrDuplicateOperation):
			return g.duplicate(ctx, p.key, attempt)
		case errors.Is(err, domain.ErrVersionConflict):
			g.log.Debug().Str("sku", p.key.SKU).Int("attempt", attempt).Msg("conflicto de versión, reintentando")
			if attempt < g.cfg.MaxAttempts {
				if err := g.backoff(ctx, attempt); err != nil {
					return nil, err
				}
			}
		default:
			return nil, err
		}
	}
	g.log.Warn().Str("sku", p.key.SKU).Int("attempts", g.cfg.MaxAttempts).Msg("reintentos agotados por contención")
	return nil, &domain.LockTimeoutError{SKU: p.key.SKU, Attempts: g.cfg.MaxAttempts}
}

// attempt: idempotencia → cargar registro → regla de negocio → ApplyDelta + Append en una tx.
func (g *Gateway) attempt(ctx context.Context, p plan) (*Outcome, error) {
	counter := p.key.OperationType.Counter()
	var out *Outcome
	err := g.txRunner.Run(ctx, func(
		ledgerRepo repository.LedgerRepository,
		movRepo repository.MovementLogRepository,
		_ repository.DriftRepository,
	) error {
		existing, err := movRepo.Find(ctx, p.key)
		if err != nil {
			return err
		}
		if existing != nil {
			return &domain.DuplicateOperationError{
				SKU:           p.key.SKU,
				OperationType: string(p.key.OperationType),
				ReferenceID:   p.key.ReferenceID,
			}
		}
		rec, err := ledgerRepo.GetOrCreate(ctx, p.key.SKU)
		if err != nil {
			return err
		}
		if err := rec.CheckDelta(counter, p.delta); err != nil {
			return err
		}
		updated, err := ledgerRepo.ApplyDelta(ctx, p.key.SKU, counter, p.delta, rec.Version)
		if err != nil {
			return err
		}
		newQty := updated.Counters.Get(counter)
		mov := &entity.Movement{
			ID:               uuid.New().String(),
			SKU:              p.key.SKU,
			OperationType:    p.key.OperationType,
			QuantityChange:   p.delta,
			PreviousQuantity: newQty.Sub(p.delta),
			NewQuantity:      newQty,
			ReferenceID:      p.key.ReferenceID,
			Details:          p.details,
			PerformedBy:      p.performedBy,
			CreatedAt:        g.now(),
		}
		if err := movRepo.Append(ctx, mov); err != nil {
			return err
		}
		out = &Outcome{Record: updated, Movement: mov}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// duplicate devuelve el estado actual sin cambios: el movimiento ya estaba aplicado.
func (g *Gateway) duplicate(ctx context.Context, key entity.IdempotencyKey, attempts int) (*Outcome, error) {
	rec, err := g.ledgerRepo.Get(ctx, key.SKU)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = entity.NewLedgerRecord(key.SKU, g.now())
	}
	mov, err := g.movRepo.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	g.log.Info().
		Str("sku", key.SKU).
		Str("operation", string(key.OperationType)).
		Str("reference_id", key.ReferenceID).
		Msg("movimiento duplicado ignorado")
	return &Outcome{Record: rec, Movement: mov, Duplicate: true, Attempts: attempts}, nil
}

func (g *Gateway) backoff(ctx context.Context, attempt int) error {
	base := g.cfg.RetryBackoff * time.Duration(attempt)
	wait := base + time.Duration(rand.Int64N(int64(g.cfg.RetryBackoff)+1))
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
