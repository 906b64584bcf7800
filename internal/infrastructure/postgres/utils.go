package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/inventory-ledger/internal/domain"
)

const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// classify traduce errores de PostgreSQL a la taxonomía del dominio.
// Contención (lock_timeout, deadlock, serialización) es reintentable; un CHECK violado es
// rechazo de negocio; el resto es de persistencia.
func classify(op, sku string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return domain.Persistence(op, err)
	}
	switch pgErr.Code {
	case codeCheckViolation:
		// CHECK de no negatividad o picklist <= putaway en inventory_ledger.
		return &domain.InsufficientQuantityError{SKU: sku, Counter: pgErr.ConstraintName}
	case codeLockNotAvailable:
		return &domain.LockTimeoutError{SKU: sku, Attempts: 1}
	case codeSerializationFailure, codeDeadlockDetected:
		return &domain.VersionConflictError{SKU: sku}
	}
	return domain.Persistence(op, err)
}
