package entity

import "time"

// Origen de una corrida de conciliación.
const (
	DriftSourceScheduled = "scheduled"
	DriftSourceManual    = "manual"
	DriftSourceCLI       = "cli"
)

// DriftEvent registra una corrección del ledger hecha por la conciliación.
// No es un movimiento: es un registro de observabilidad con los valores antes y después.
type DriftEvent struct {
	ID              string
	SKU             string
	Previous        Counters
	Corrected       Counters
	PreviousVersion int64
	NewVersion      int64
	Source          string
	DetectedAt      time.Time
}
