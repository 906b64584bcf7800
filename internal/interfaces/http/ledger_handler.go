package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/inventory-ledger/internal/application/dto"
	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/internal/domain/repository"
)

const maxBulkSKUs = 100

// LedgerHandler movimientos, snapshots e historial por SKU (protegido).
type LedgerHandler struct {
	gateway *ledger.Gateway
	summary *ledger.SummaryView
	audit   *ledger.AuditService
	log     zerolog.Logger
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(gateway *ledger.Gateway, summary *ledger.SummaryView, audit *ledger.AuditService, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{gateway: gateway, summary: summary, audit: audit, log: log}
}

// RecordMovement godoc
// @Summary      Registrar movimiento en el ledger
// @Description  Idempotente por (sku, operation_type, reference_id): repetir devuelve 200 con duplicate=true.
// @Tags         ledger
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RecordMovementRequest  true  "operation_type, sku, quantity > 0, reference_id"
// @Success      201   {object}  dto.RecordMovementResponse
// @Success      200   {object}  dto.RecordMovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/ledger/movements [post]
func (h *LedgerHandler) RecordMovement(c *fiber.Ctx) error {
	var in dto.RecordMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	op, ok := entity.ParseOperationType(in.OperationType)
	if !ok {
		return writeError(c, h.log, &domain.ValidationError{Field: "operation_type", Reason: "no soportado"})
	}
	out, err := h.gateway.Record(c.Context(), ledger.Command{
		OperationType: op,
		SKU:           in.SKU,
		Quantity:      in.Quantity,
		ReferenceID:   in.ReferenceID,
		PerformedBy:   GetUserID(c),
		Details:       in.Details,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := fiber.StatusCreated
	if out.Duplicate {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(toRecordMovementResponse(out))
}

// ReverseMovement godoc
// @Summary      Revertir un movimiento
// @Description  Agrega un movimiento compensatorio con reference_id "reversal:<original>". Idempotente.
// @Tags         ledger
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReverseMovementRequest  true  "sku, operation_type y reference_id del original"
// @Success      201   {object}  dto.RecordMovementResponse
// @Success      200   {object}  dto.RecordMovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/ledger/movements/reversals [post]
func (h *LedgerHandler) ReverseMovement(c *fiber.Ctx) error {
	var in dto.ReverseMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	op, ok := entity.ParseOperationType(in.OperationType)
	if !ok {
		return writeError(c, h.log, &domain.ValidationError{Field: "operation_type", Reason: "no soportado"})
	}
	out, err := h.gateway.Reverse(c.Context(), in.SKU, op, in.ReferenceID, GetUserID(c), in.Reason)
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := fiber.StatusCreated
	if out.Duplicate {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(toRecordMovementResponse(out))
}

// GetSnapshot godoc
// @Summary      Estado actual de una SKU
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        sku  path  string  true  "SKU"
// @Success      200  {object}  dto.LedgerSnapshotResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/ledger/{sku} [get]
func (h *LedgerHandler) GetSnapshot(c *fiber.Ctx) error {
	snap, err := h.summary.Snapshot(c.Context(), c.Params("sku"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(toSnapshotResponse(snap))
}

// ListSnapshots godoc
// @Summary      Estado actual de varias SKUs
// @Description  Las SKUs sin movimientos se omiten de la respuesta.
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        skus  query  string  true  "SKUs separadas por coma (máx 100)"
// @Success      200  {array}   dto.LedgerSnapshotResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/ledger [get]
func (h *LedgerHandler) ListSnapshots(c *fiber.Ctx) error {
	var skus []string
	for _, s := range strings.Split(c.Query("skus"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			skus = append(skus, s)
		}
	}
	if len(skus) == 0 || len(skus) > maxBulkSKUs {
		return writeError(c, h.log, &domain.ValidationError{Field: "skus", Reason: "entre 1 y 100 SKUs"})
	}
	list, err := h.summary.Snapshots(c.Context(), skus)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.LedgerSnapshotResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSnapshotResponse(s))
	}
	return c.JSON(out)
}

// ListMovements godoc
// @Summary      Historial de movimientos de una SKU
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        sku     path   string  true   "SKU"
// @Param        from    query  string  false  "RFC3339, inclusivo"
// @Param        to      query  string  false  "RFC3339, inclusivo"
// @Param        limit   query  int     false  "máx 500"
// @Param        offset  query  int     false  "desplazamiento"
// @Success      200  {object}  dto.MovementHistoryResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/ledger/{sku}/movements [get]
func (h *LedgerHandler) ListMovements(c *fiber.Ctx) error {
	from, to, err := parseRange(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return writeError(c, h.log, &domain.ValidationError{Field: "limit/offset", Reason: "deben ser enteros"})
	}
	page.DefaultPage()
	list, err := h.audit.History(c.Context(), repository.HistoryFilter{
		SKU:    c.Params("sku"),
		From:   from,
		To:     to,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	items := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		items = append(items, toMovementResponse(m))
	}
	return c.JSON(dto.MovementHistoryResponse{
		SKU:   c.Params("sku"),
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Count: len(items)},
	})
}

// MovementReport godoc
// @Summary      Reporte PDF del historial de una SKU
// @Tags         ledger
// @Security     Bearer
// @Produce      application/pdf
// @Param        sku   path   string  true   "SKU"
// @Param        from  query  string  false  "RFC3339"
// @Param        to    query  string  false  "RFC3339"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/ledger/{sku}/movements/report.pdf [get]
func (h *LedgerHandler) MovementReport(c *fiber.Ctx) error {
	from, to, err := parseRange(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	pdf, err := h.audit.Report(c.Context(), c.Params("sku"), from, to)
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="movimientos-%s.pdf"`, c.Params("sku")))
	return c.Send(pdf)
}

// ListDriftEvents godoc
// @Summary      Correcciones de la conciliación para una SKU
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        sku     path   string  true   "SKU"
// @Param        limit   query  int     false  "máx 500"
// @Param        offset  query  int     false  "desplazamiento"
// @Success      200  {array}   dto.DriftEventResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/ledger/{sku}/drift [get]
func (h *LedgerHandler) ListDriftEvents(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return writeError(c, h.log, &domain.ValidationError{Field: "limit/offset", Reason: "deben ser enteros"})
	}
	page.DefaultPage()
	events, err := h.audit.DriftEvents(c.Context(), c.Params("sku"), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.DriftEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toDriftEventResponse(ev))
	}
	return c.JSON(out)
}

// parseRange lee from/to (RFC3339) del query string.
func parseRange(c *fiber.Ctx) (from, to *time.Time, err error) {
	parse := func(field string) (*time.Time, error) {
		raw := c.Query(field)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, &domain.ValidationError{Field: field, Reason: "debe ser RFC3339"}
		}
		return &t, nil
	}
	if from, err = parse("from"); err != nil {
		return nil, nil, err
	}
	if to, err = parse("to"); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}
