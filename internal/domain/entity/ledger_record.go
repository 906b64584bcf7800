package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventory-ledger/internal/domain"
)

// Counter nombra una columna de contador del ledger.
type Counter string

const (
	CounterPO              Counter = "po_quantity"
	CounterGRN             Counter = "grn_quantity"
	CounterPutaway         Counter = "putaway_quantity"
	CounterPicklist        Counter = "picklist_quantity"
	CounterReturnTryAndBuy Counter = "return_try_and_buy_quantity"
	CounterReturnOther     Counter = "return_other_quantity"
)

// AllCounters en el orden de las columnas de inventory_ledger.
var AllCounters = []Counter{
	CounterPO, CounterGRN, CounterPutaway, CounterPicklist, CounterReturnTryAndBuy, CounterReturnOther,
}

// Valid indica si c es una columna conocida (se usa para construir SQL de forma segura).
func (c Counter) Valid() bool {
	for _, k := range AllCounters {
		if k == c {
			return true
		}
	}
	return false
}

// Counters agrupa las cantidades por etapa del pipeline de bodega.
type Counters struct {
	PO              decimal.Decimal `json:"po_quantity"`
	GRN             decimal.Decimal `json:"grn_quantity"`
	Putaway         decimal.Decimal `json:"putaway_quantity"`
	Picklist        decimal.Decimal `json:"picklist_quantity"`
	ReturnTryAndBuy decimal.Decimal `json:"return_try_and_buy_quantity"`
	ReturnOther     decimal.Decimal `json:"return_other_quantity"`
}

// Get devuelve el valor del contador c.
func (c Counters) Get(counter Counter) decimal.Decimal {
	switch counter {
	case CounterPO:
		return c.PO
	case CounterGRN:
		return c.GRN
	case CounterPutaway:
		return c.Putaway
	case CounterPicklist:
		return c.Picklist
	case CounterReturnTryAndBuy:
		return c.ReturnTryAndBuy
	case CounterReturnOther:
		return c.ReturnOther
	}
	return decimal.Zero
}

// Set asigna el valor del contador c.
func (c *Counters) Set(counter Counter, v decimal.Decimal) {
	switch counter {
	case CounterPO:
		c.PO = v
	case CounterGRN:
		c.GRN = v
	case CounterPutaway:
		c.Putaway = v
	case CounterPicklist:
		c.Picklist = v
	case CounterReturnTryAndBuy:
		c.ReturnTryAndBuy = v
	case CounterReturnOther:
		c.ReturnOther = v
	}
}

// Equal compara los seis contadores por valor.
func (c Counters) Equal(o Counters) bool {
	for _, k := range AllCounters {
		if !c.Get(k).Equal(o.Get(k)) {
			return false
		}
	}
	return true
}

// Available = putaway - picklist.
func (c Counters) Available() decimal.Decimal {
	return c.Putaway.Sub(c.Picklist)
}

// TotalInventory = po + grn + putaway + return_try_and_buy + return_other.
func (c Counters) TotalInventory() decimal.Decimal {
	return c.PO.Add(c.GRN).Add(c.Putaway).Add(c.ReturnTryAndBuy).Add(c.ReturnOther)
}

// LedgerRecord es la fila materializada por SKU (caché viva del estado de stock).
type LedgerRecord struct {
	SKU string
	Counters
	TotalAvailableQuantity decimal.Decimal
	UpdatedAt              time.Time
	Version                int64
}

// NewLedgerRecord crea un registro en cero para la SKU.
func NewLedgerRecord(sku string, now time.Time) *LedgerRecord {
	return &LedgerRecord{SKU: sku, UpdatedAt: now}
}

// Recompute actualiza total_available_quantity a partir de los contadores.
func (r *LedgerRecord) Recompute() {
	r.TotalAvailableQuantity = r.Counters.Available()
}

// Clone devuelve una copia independiente.
func (r *LedgerRecord) Clone() *LedgerRecord {
	c := *r
	return &c
}

// CheckDelta valida que aplicar delta sobre counter respete las invariantes del ledger:
// ningún contador negativo, picklist nunca por encima de putaway.
func (r *LedgerRecord) CheckDelta(counter Counter, delta decimal.Decimal) error {
	next := r.Counters.Get(counter).Add(delta)
	if next.IsNegative() {
		return &domain.InsufficientQuantityError{SKU: r.SKU, Counter: string(counter), Available: r.Counters.Get(counter), Requested: delta.Neg()}
	}
	switch counter {
	case CounterPicklist:
		if next.GreaterThan(r.Putaway) {
			return &domain.InsufficientQuantityError{SKU: r.SKU, Counter: string(CounterPutaway), Available: r.Counters.Available(), Requested: delta}
		}
	case CounterPutaway:
		if next.LessThan(r.Picklist) {
			return &domain.InsufficientQuantityError{SKU: r.SKU, Counter: string(CounterPutaway), Available: r.Counters.Available(), Requested: delta.Neg()}
		}
	}
	return nil
}

// ApplyDelta muta el registro: contador, total disponible, versión y fecha.
// No valida; llamar antes a CheckDelta.
func (r *LedgerRecord) ApplyDelta(counter Counter, delta decimal.Decimal, now time.Time) {
	r.Counters.Set(counter, r.Counters.Get(counter).Add(delta))
	r.Recompute()
	r.Version++
	r.UpdatedAt = now
}
