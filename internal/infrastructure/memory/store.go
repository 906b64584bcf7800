// Package memory implementa los puertos del ledger en memoria (pruebas y STORAGE_DRIVER=memory).
//
// Las transacciones bufferizan sus escrituras y las confirman de forma atómica bajo el mutex
// del store, verificando al confirmar que la versión de cada fila tocada sigue siendo la leída
// (compare-and-swap) y que ninguna clave de idempotencia fue tomada por otra transacción.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

var _ ledger.TxRunner = (*TxRunner)(nil)

// Store estado confirmado en memoria.
type Store struct {
	mu        sync.RWMutex
	ledger    map[string]*entity.LedgerRecord
	movements map[string][]*entity.Movement
	keys      map[entity.IdempotencyKey]*entity.Movement
	drift     map[string][]*entity.DriftEvent
	now       func() time.Time
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		ledger:    make(map[string]*entity.LedgerRecord),
		movements: make(map[string][]*entity.Movement),
		keys:      make(map[entity.IdempotencyKey]*entity.Movement),
		drift:     make(map[string][]*entity.DriftEvent),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LedgerRepository devuelve el repositorio del ledger en modo autocommit.
func (s *Store) LedgerRepository() *LedgerRepo { return &LedgerRepo{s: s} }

// MovementLogRepository devuelve el repositorio del log en modo autocommit.
func (s *Store) MovementLogRepository() *MovementRepo { return &MovementRepo{s: s} }

// DriftRepository devuelve el repositorio de desviaciones en modo autocommit.
func (s *Store) DriftRepository() *DriftRepo { return &DriftRepo{s: s} }

// TxRunner devuelve el ejecutor de transacciones del store.
func (s *Store) TxRunner() *TxRunner { return &TxRunner{s: s} }

// Tamper modifica la fila confirmada de la SKU sin pasar por el gateway ni cambiar la versión.
// Reproduce una escritura directa defectuosa (script ad-hoc) para probar la conciliación.
func (s *Store) Tamper(sku string, fn func(rec *entity.LedgerRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ledger[sku]
	if !ok {
		rec = entity.NewLedgerRecord(sku, s.now())
		s.ledger[sku] = rec
	}
	fn(rec)
}

// pending escritura de ledger bufferizada; base es la versión confirmada sobre la que se calculó.
type pending struct {
	rec  *entity.LedgerRecord
	base int64
}

type tx struct {
	ledger    map[string]*pending
	movements []*entity.Movement
	keys      map[entity.IdempotencyKey]*entity.Movement
	drift     []*entity.DriftEvent
}

func newTx() *tx {
	return &tx{
		ledger: make(map[string]*pending),
		keys:   make(map[entity.IdempotencyKey]*entity.Movement),
	}
}

// TxRunner ejecuta callbacks con repositorios atados a una transacción en memoria.
type TxRunner struct {
	s *Store
}

// Run ejecuta fn y confirma si no hubo error y el contexto sigue vigente.
func (r *TxRunner) Run(ctx context.Context, fn func(
	ledgerRepo repository.LedgerRepository,
	movRepo repository.MovementLogRepository,
	driftRepo repository.DriftRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx()
	if err := fn(&LedgerRepo{s: r.s, tx: t}, &MovementRepo{s: r.s, tx: t}, &DriftRepo{s: r.s, tx: t}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sku, p := range t.ledger {
		var actual int64
		if cur, ok := s.ledger[sku]; ok {
			actual = cur.Version
		}
		if actual != p.base {
			return &domain.VersionConflictError{SKU: sku, Expected: p.base, Actual: actual}
		}
	}
	for _, m := range t.movements {
		if _, ok := s.keys[m.Key()]; ok {
			return &domain.DuplicateOperationError{SKU: m.SKU, OperationType: string(m.OperationType), ReferenceID: m.ReferenceID}
		}
	}

	for sku, p := range t.ledger {
		s.ledger[sku] = p.rec
	}
	for _, m := range t.movements {
		s.insertMovementLocked(m)
	}
	for _, d := range t.drift {
		s.drift[d.SKU] = append(s.drift[d.SKU], d)
	}
	return nil
}

func (s *Store) insertMovementLocked(m *entity.Movement) {
	s.movements[m.SKU] = append(s.movements[m.SKU], m)
	s.keys[m.Key()] = m
}

func cloneMovement(m *entity.Movement) *entity.Movement {
	c := *m
	c.Details = maps.Clone(m.Details)
	return &c
}

func sortedKeys[V any](m map[string]V, after string, limit int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
