package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/inventory-ledger/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "lock_timeout", err: &pgconn.PgError{Code: codeLockNotAvailable}, want: domain.ErrLockTimeout},
		{name: "deadlock", err: &pgconn.PgError{Code: codeDeadlockDetected}, want: domain.ErrVersionConflict},
		{name: "serialización", err: &pgconn.PgError{Code: codeSerializationFailure}, want: domain.ErrVersionConflict},
		{name: "check", err: &pgconn.PgError{Code: codeCheckViolation, ConstraintName: "inventory_ledger_picklist_le_putaway"}, want: domain.ErrInsufficientQuantity},
		{name: "envuelto", err: fmt.Errorf("commit: %w", &pgconn.PgError{Code: codeLockNotAvailable}), want: domain.ErrLockTimeout},
		{name: "otro código", err: &pgconn.PgError{Code: "42P01"}, want: domain.ErrPersistence},
		{name: "no es de postgres", err: errors.New("conn closed"), want: domain.ErrPersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", "SKU001", tt.err)
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestClassify_CheckIndicaRestriccion(t *testing.T) {
	err := classify("overwrite ledger", "SKU001", &pgconn.PgError{Code: codeCheckViolation, ConstraintName: "inventory_ledger_putaway_quantity_check"})

	var insufficient *domain.InsufficientQuantityError
	assert.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "SKU001", insufficient.SKU)
	assert.Equal(t, "inventory_ledger_putaway_quantity_check", insufficient.Counter)
	assert.True(t, domain.IsRejected(err))
}

func TestClassify_NilYUnicidad(t *testing.T) {
	assert.NoError(t, classify("op", "SKU001", nil))
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: codeUniqueViolation}))
	assert.False(t, isUniqueViolation(errors.New("x")))
}
