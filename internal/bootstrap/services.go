// Package bootstrap arma los servicios del ledger a partir de la configuración.
// Lo comparten el servidor HTTP y el CLI de conciliación.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
	"github.com/jhoicas/inventory-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/inventory-ledger/internal/infrastructure/pdf"
	"github.com/jhoicas/inventory-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/inventory-ledger/internal/infrastructure/redis"
	"github.com/jhoicas/inventory-ledger/pkg/config"
)

// Services servicios de aplicación listos para usar. RunLock es nil sin Redis.
type Services struct {
	Gateway   *ledger.Gateway
	Summary   *ledger.SummaryView
	Audit     *ledger.AuditService
	Reconcile *ledger.ReconciliationEngine
	RunLock   *redis.RunLock

	closers []func()
}

// Close libera pool y cliente Redis en orden inverso.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type storage struct {
	txRunner   ledger.TxRunner
	ledgerRepo repository.LedgerRepository
	movRepo    repository.MovementLogRepository
	driftRepo  repository.DriftRepository
}

// Build abre el almacenamiento según STORAGE_DRIVER, el lease en Redis si está configurado
// y construye gateway, vista de resumen, auditoría y motor de conciliación.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	svc := &Services{}

	var st storage
	switch cfg.App.StorageDriver {
	case "memory":
		store := memory.NewStore()
		st = storage{store.TxRunner(), store.LedgerRepository(), store.MovementLogRepository(), store.DriftRepository()}
		log.Warn().Msg("STORAGE_DRIVER=memory: el ledger no persiste entre reinicios")
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		svc.closers = append(svc.closers, pool.Close)
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			svc.Close()
			return nil, fmt.Errorf("esquema: %w", err)
		}
		st = storage{
			txRunner:   postgres.NewTxRunner(pool, cfg.DB.LockTimeout),
			ledgerRepo: postgres.NewLedgerRepository(pool),
			movRepo:    postgres.NewMovementLogRepository(pool),
			driftRepo:  postgres.NewDriftRepository(pool),
		}
	default:
		return nil, errors.New("STORAGE_DRIVER no soportado: " + cfg.App.StorageDriver)
	}

	svc.Gateway = ledger.NewGateway(st.txRunner, st.ledgerRepo, st.movRepo, ledger.GatewayConfig{
		MaxAttempts:  cfg.Ledger.MaxAttempts,
		RetryBackoff: cfg.Ledger.RetryBackoff,
	}, log)
	svc.Summary = ledger.NewSummaryView(st.ledgerRepo)
	svc.Audit = ledger.NewAuditService(st.movRepo, st.driftRepo, svc.Summary, pdf.NewMovementReportGenerator(cfg.App.Name))
	svc.Reconcile = ledger.NewReconciliationEngine(st.txRunner, st.ledgerRepo, st.movRepo, st.driftRepo, ledger.ReconcileConfig{
		BatchSize:           cfg.Reconcile.BatchSize,
		Workers:             cfg.Reconcile.Workers,
		MaxAttempts:         cfg.Reconcile.MaxAttempts,
		EscalationThreshold: cfg.Reconcile.EscalationThreshold,
		EscalationWindow:    cfg.Reconcile.EscalationWindow,
	}, log)

	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			// sin lease cada instancia concilia por su cuenta; las correcciones siguen siendo CAS.
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("lease de conciliación deshabilitado")
		} else {
			svc.closers = append(svc.closers, func() { _ = client.Close() })
			svc.RunLock = redis.NewRunLock(client, "reconcile", cfg.Reconcile.Timeout)
		}
	}
	return svc, nil
}
