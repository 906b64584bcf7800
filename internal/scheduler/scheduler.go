// Package scheduler programa la conciliación periódica del ledger.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

// Reconciler corrida completa de conciliación (implementado por *ledger.ReconciliationEngine).
type Reconciler interface {
	ReconcileAll(ctx context.Context, source string) (*ledger.BatchReport, error)
}

// Locker lease compartido entre instancias (implementado por *redis.RunLock).
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), acquired bool, err error)
}

// Scheduler ejecuta la conciliación según una expresión cron estándar (5 campos).
// Si una corrida sigue en curso cuando llega el siguiente disparo, ese disparo se omite.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	lock       Locker
	spec       string
	timeout    time.Duration
	running    atomic.Bool
	log        zerolog.Logger
}

// New crea el scheduler. timeout acota cada corrida; 0 usa una hora.
func New(spec string, timeout time.Duration, reconciler Reconciler, log zerolog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &Scheduler{
		cron:       cron.New(),
		reconciler: reconciler,
		spec:       spec,
		timeout:    timeout,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// WithLock hace que cada disparo tome el lease antes de conciliar, para que entre varias
// instancias corra una sola.
func (s *Scheduler) WithLock(l Locker) *Scheduler {
	s.lock = l
	return s
}

// Start registra el job y arranca el cron. Devuelve error si la expresión es inválida.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		return err
	}
	s.log.Info().Str("cron", s.spec).Msg("conciliación programada")
	s.cron.Start()
	return nil
}

// Stop detiene el cron y espera a que termine la corrida en curso.
func (s *Scheduler) Stop() {
	s.log.Info().Msg("deteniendo scheduler")
	<-s.cron.Stop().Done()
}

// RunOnce ejecuta una corrida salvo que ya haya otra en curso.
func (s *Scheduler) RunOnce() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("conciliación anterior aún en curso, se omite este disparo")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.lock != nil {
		unlock, acquired, err := s.lock.TryLock(ctx)
		switch {
		case err != nil:
			// las correcciones son CAS por versión: dos corridas simultáneas no se pisan.
			s.log.Warn().Err(err).Msg("lease de conciliación no disponible, se concilia igual")
		case !acquired:
			s.log.Info().Msg("otra instancia está conciliando, se omite este disparo")
			return
		default:
			defer unlock()
		}
	}

	report, err := s.reconciler.ReconcileAll(ctx, entity.DriftSourceScheduled)
	if err != nil {
		s.log.Error().Err(err).Msg("conciliación programada interrumpida")
		return
	}
	if len(report.Escalated) > 0 {
		s.log.Error().Strs("skus", report.Escalated).Msg("SKUs con desviación recurrente")
	}
}
