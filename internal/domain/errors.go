package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound             = errors.New("recurso no encontrado")
	ErrInvalidInput         = errors.New("entrada inválida")
	ErrUnauthorized         = errors.New("no autorizado")
	ErrForbidden            = errors.New("acceso denegado")
	ErrInsufficientQuantity = errors.New("cantidad insuficiente")
	ErrDuplicateOperation   = errors.New("operación ya aplicada")
	ErrVersionConflict      = errors.New("conflicto de versión")
	ErrLockTimeout          = errors.New("tiempo de espera de bloqueo agotado")
	ErrDriftDetected        = errors.New("desviación detectada entre ledger y movimientos")
	ErrPersistence          = errors.New("error de persistencia")
)

// ValidationError describe una entrada mal formada; se rechaza antes de cualquier escritura.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validación: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// InsufficientQuantityError indica que el movimiento dejaría un contador negativo
// o superaría su techo (reserva por encima de lo ubicado).
type InsufficientQuantityError struct {
	SKU       string
	Counter   string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("cantidad insuficiente en %s para %s: disponible %s, solicitado %s",
		e.Counter, e.SKU, e.Available.String(), e.Requested.String())
}

func (e *InsufficientQuantityError) Unwrap() error { return ErrInsufficientQuantity }

// DuplicateOperationError: la clave de idempotencia (sku, operation_type, reference_id) ya existe.
type DuplicateOperationError struct {
	SKU           string
	OperationType string
	ReferenceID   string
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("operación duplicada: %s/%s/%s", e.SKU, e.OperationType, e.ReferenceID)
}

func (e *DuplicateOperationError) Unwrap() error { return ErrDuplicateOperation }

// VersionConflictError: la versión esperada no coincide con la almacenada.
type VersionConflictError struct {
	SKU      string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("conflicto de versión en %s: esperada %d, actual %d", e.SKU, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// LockTimeoutError se devuelve cuando se agotan los reintentos o la espera del bloqueo de fila.
type LockTimeoutError struct {
	SKU      string
	Attempts int
}

func (e *LockTimeoutError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("contención en %s: %d intentos agotados", e.SKU, e.Attempts)
	}
	return fmt.Sprintf("contención en %s: bloqueo no adquirido a tiempo", e.SKU)
}

func (e *LockTimeoutError) Unwrap() error { return ErrLockTimeout }

// DriftDetectedError se reporta cuando la misma SKU se corrige repetidamente dentro de la ventana.
type DriftDetectedError struct {
	SKU         string
	Occurrences int
	Threshold   int
}

func (e *DriftDetectedError) Error() string {
	return fmt.Sprintf("desviación recurrente en %s: %d correcciones (umbral %d)", e.SKU, e.Occurrences, e.Threshold)
}

func (e *DriftDetectedError) Unwrap() error { return ErrDriftDetected }

// PersistenceError envuelve un fallo del almacenamiento conservando la causa original.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Persistence envuelve err como PersistenceError; nil si err es nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsRetryable indica contención transitoria: el llamador puede reintentar con backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrVersionConflict)
}

// IsRejected indica un rechazo de negocio o de validación: no reintentar.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInsufficientQuantity)
}
