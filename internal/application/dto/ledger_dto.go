package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordMovementRequest body para POST /api/ledger/movements.
type RecordMovementRequest struct {
	OperationType string          `json:"operation_type"` // po | grn | putaway | picklist | return_try_and_buy | return_other
	SKU           string          `json:"sku"`
	Quantity      decimal.Decimal `json:"quantity"`
	ReferenceID   string          `json:"reference_id"`
	Details       map[string]any  `json:"details,omitempty"`
}

// ReverseMovementRequest body para POST /api/ledger/movements/reversals.
type ReverseMovementRequest struct {
	OperationType string `json:"operation_type"`
	SKU           string `json:"sku"`
	ReferenceID   string `json:"reference_id"` // del movimiento original
	Reason        string `json:"reason,omitempty"`
}

// LedgerSnapshotResponse contadores vivos más los campos derivados.
type LedgerSnapshotResponse struct {
	SKU                     string          `json:"sku"`
	POQuantity              decimal.Decimal `json:"po_quantity"`
	GRNQuantity             decimal.Decimal `json:"grn_quantity"`
	PutawayQuantity         decimal.Decimal `json:"putaway_quantity"`
	PicklistQuantity        decimal.Decimal `json:"picklist_quantity"`
	ReturnTryAndBuyQuantity decimal.Decimal `json:"return_try_and_buy_quantity"`
	ReturnOtherQuantity     decimal.Decimal `json:"return_other_quantity"`
	TotalAvailableQuantity  decimal.Decimal `json:"total_available_quantity"`
	AvailableForPicking     decimal.Decimal `json:"available_for_picking"`
	TotalInventory          decimal.Decimal `json:"total_inventory"`
	Version                 int64           `json:"version"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// MovementResponse una entrada del log de movimientos.
type MovementResponse struct {
	ID               string          `json:"id"`
	SKU              string          `json:"sku"`
	OperationType    string          `json:"operation_type"`
	QuantityChange   decimal.Decimal `json:"quantity_change"`
	PreviousQuantity decimal.Decimal `json:"previous_quantity"`
	NewQuantity      decimal.Decimal `json:"new_quantity"`
	ReferenceID      string          `json:"reference_id"`
	Details          map[string]any  `json:"details,omitempty"`
	PerformedBy      string          `json:"performed_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// RecordMovementResponse resultado de un movimiento. Duplicate=true: ya estaba aplicado, sin cambios.
type RecordMovementResponse struct {
	Duplicate bool                   `json:"duplicate"`
	Attempts  int                    `json:"attempts"`
	Ledger    LedgerSnapshotResponse `json:"ledger"`
	Movement  *MovementResponse      `json:"movement,omitempty"`
}

// MovementHistoryResponse página del historial de una SKU.
type MovementHistoryResponse struct {
	SKU   string             `json:"sku"`
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// CountersDTO contadores sin derivados (eventos de desviación).
type CountersDTO struct {
	POQuantity              decimal.Decimal `json:"po_quantity"`
	GRNQuantity             decimal.Decimal `json:"grn_quantity"`
	PutawayQuantity         decimal.Decimal `json:"putaway_quantity"`
	PicklistQuantity        decimal.Decimal `json:"picklist_quantity"`
	ReturnTryAndBuyQuantity decimal.Decimal `json:"return_try_and_buy_quantity"`
	ReturnOtherQuantity     decimal.Decimal `json:"return_other_quantity"`
}

// DriftEventResponse corrección hecha por la conciliación.
type DriftEventResponse struct {
	ID              string      `json:"id"`
	SKU             string      `json:"sku"`
	Previous        CountersDTO `json:"previous"`
	Corrected       CountersDTO `json:"corrected"`
	PreviousVersion int64       `json:"previous_version"`
	NewVersion      int64       `json:"new_version"`
	Source          string      `json:"source"`
	DetectedAt      time.Time   `json:"detected_at"`
}

// ReconcileRequest body para POST /api/admin/reconcile. Sin SKUs concilia todo el ledger.
type ReconcileRequest struct {
	SKUs []string `json:"skus,omitempty"`
}

// ReconcileResultResponse resultado por SKU.
type ReconcileResultResponse struct {
	SKU       string                  `json:"sku"`
	Status    string                  `json:"status"` // in_sync | corrected | skipped | failed
	Attempts  int                     `json:"attempts"`
	Escalated bool                    `json:"escalated"`
	Error     string                  `json:"error,omitempty"`
	Before    *LedgerSnapshotResponse `json:"before,omitempty"`
	After     *LedgerSnapshotResponse `json:"after,omitempty"`
}

// ReconcileReportResponse resumen de una corrida por lotes.
type ReconcileReportResponse struct {
	Source     string                    `json:"source"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Checked    int                       `json:"checked"`
	InSync     int                       `json:"in_sync"`
	Corrected  int                       `json:"corrected"`
	Skipped    int                       `json:"skipped"`
	Failed     int                       `json:"failed"`
	Escalated  []string                  `json:"escalated"`
	Results    []ReconcileResultResponse `json:"results"`
}
