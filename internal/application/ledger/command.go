package ledger

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

// SystemActor se usa como performed_by cuando el llamador no se identifica.
const SystemActor = "system"

const maxReferenceLen = 128

// Sin '/': la SKU viaja como segmento de ruta en /api/ledger/:sku.
var skuPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Command solicitud de movimiento hacia el Gateway.
type Command struct {
	OperationType entity.OperationType
	SKU           string
	Quantity      decimal.Decimal
	ReferenceID   string
	PerformedBy   string
	Details       map[string]any
}

// Outcome resultado de un movimiento. Duplicate indica que la clave ya estaba aplicada
// y Record es el estado actual, sin cambios.
type Outcome struct {
	Record    *entity.LedgerRecord
	Movement  *entity.Movement
	Duplicate bool
	Attempts  int
}

// ValidateSKU normaliza y valida un código de SKU. Devuelve una copia propia: la SKU termina
// como clave de mapas y filas, y el llamador puede pasar un string que apunta a un buffer
// reutilizable (parámetros de fiber/fasthttp).
func ValidateSKU(sku string) (string, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return "", &domain.ValidationError{Field: "sku", Reason: "es obligatorio"}
	}
	if !skuPattern.MatchString(sku) {
		return "", &domain.ValidationError{Field: "sku", Reason: "tiene formato inválido"}
	}
	return strings.Clone(sku), nil
}

func validateReference(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", &domain.ValidationError{Field: "reference_id", Reason: "es obligatorio"}
	}
	if len(ref) > maxReferenceLen {
		return "", &domain.ValidationError{Field: "reference_id", Reason: "excede 128 caracteres"}
	}
	return ref, nil
}

func actor(performedBy string) string {
	if s := strings.TrimSpace(performedBy); s != "" {
		return s
	}
	return SystemActor
}

// normalize valida el comando antes de cualquier escritura.
func (c *Command) normalize() error {
	if !c.OperationType.Valid() {
		return &domain.ValidationError{Field: "operation_type", Reason: "no soportado"}
	}
	sku, err := ValidateSKU(c.SKU)
	if err != nil {
		return err
	}
	c.SKU = sku
	ref, err := validateReference(c.ReferenceID)
	if err != nil {
		return err
	}
	if strings.HasPrefix(ref, entity.ReversalPrefix) {
		return &domain.ValidationError{Field: "reference_id", Reason: "usa un prefijo reservado"}
	}
	c.ReferenceID = ref
	if !c.Quantity.IsPositive() {
		return &domain.ValidationError{Field: "quantity", Reason: "debe ser mayor que cero"}
	}
	c.PerformedBy = actor(c.PerformedBy)
	return nil
}
