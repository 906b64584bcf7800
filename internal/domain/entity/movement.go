package entity

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OperationType tipos de movimiento del ledger (uno por transición de etapa).
type OperationType string

const (
	OperationPO              OperationType = "po"
	OperationGRN             OperationType = "grn"
	OperationPutaway         OperationType = "putaway"
	OperationPicklist        OperationType = "picklist"
	OperationReturnTryAndBuy OperationType = "return_try_and_buy"
	OperationReturnOther     OperationType = "return_other"
)

var operationCounters = map[OperationType]Counter{
	OperationPO:              CounterPO,
	OperationGRN:             CounterGRN,
	OperationPutaway:         CounterPutaway,
	OperationPicklist:        CounterPicklist,
	OperationReturnTryAndBuy: CounterReturnTryAndBuy,
	OperationReturnOther:     CounterReturnOther,
}

// Counter devuelve la columna que toca el tipo de operación.
func (t OperationType) Counter() Counter {
	return operationCounters[t]
}

// Valid indica si t es un tipo conocido.
func (t OperationType) Valid() bool {
	_, ok := operationCounters[t]
	return ok
}

// ParseOperationType normaliza y valida un tipo recibido de un llamador externo.
func ParseOperationType(s string) (OperationType, bool) {
	t := OperationType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// ReversalPrefix antecede al reference_id de un movimiento compensatorio.
const ReversalPrefix = "reversal:"

// Movement es una entrada inmutable del log de movimientos.
type Movement struct {
	ID               string
	SKU              string
	OperationType    OperationType
	QuantityChange   decimal.Decimal // con signo
	PreviousQuantity decimal.Decimal // del contador tocado
	NewQuantity      decimal.Decimal
	ReferenceID      string
	Details          map[string]any
	PerformedBy      string
	CreatedAt        time.Time
}

// IdempotencyKey identifica un movimiento ya aplicado.
type IdempotencyKey struct {
	SKU           string
	OperationType OperationType
	ReferenceID   string
}

// Key devuelve la clave de idempotencia del movimiento.
func (m *Movement) Key() IdempotencyKey {
	return IdempotencyKey{SKU: m.SKU, OperationType: m.OperationType, ReferenceID: m.ReferenceID}
}

// IsReversal indica si el movimiento compensa otro.
func (m *Movement) IsReversal() bool {
	return strings.HasPrefix(m.ReferenceID, ReversalPrefix)
}

// SortMovements ordena por created_at y luego por id (orden de replay e historial).
func SortMovements(list []*Movement) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

// Fold reproduce los movimientos de una SKU en orden y devuelve los contadores resultantes.
// El registro devuelto no tiene versión: es el valor canónico, no una fila persistida.
func Fold(sku string, movements []*Movement) *LedgerRecord {
	ordered := make([]*Movement, len(movements))
	copy(ordered, movements)
	SortMovements(ordered)

	rec := &LedgerRecord{SKU: sku}
	for _, m := range ordered {
		c := m.OperationType.Counter()
		if c == "" {
			continue
		}
		rec.Counters.Set(c, rec.Counters.Get(c).Add(m.QuantityChange))
		rec.UpdatedAt = m.CreatedAt
	}
	rec.Recompute()
	return rec
}
