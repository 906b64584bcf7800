package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/inventory-ledger/internal/application/dto"
	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

// ReconcileHandler disparo manual de la conciliación (solo admin).
type ReconcileHandler struct {
	engine *ledger.ReconciliationEngine
	log    zerolog.Logger
}

// NewReconcileHandler construye el handler.
func NewReconcileHandler(engine *ledger.ReconciliationEngine, log zerolog.Logger) *ReconcileHandler {
	return &ReconcileHandler{engine: engine, log: log}
}

// ReconcileBatch godoc
// @Summary      Conciliar SKUs
// @Description  Con skus vacío recorre todo el ledger. Los errores por SKU quedan en el reporte.
// @Tags         admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReconcileRequest  false  "skus a conciliar"
// @Success      200   {object}  dto.ReconcileReportResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/admin/reconcile [post]
func (h *ReconcileHandler) ReconcileBatch(c *fiber.Ctx) error {
	var in dto.ReconcileRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	var (
		report *ledger.BatchReport
		err    error
	)
	if len(in.SKUs) == 0 {
		report, err = h.engine.ReconcileAll(c.Context(), entity.DriftSourceManual)
	} else {
		report, err = h.engine.ReconcileBatch(c.Context(), in.SKUs, entity.DriftSourceManual)
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(toReconcileReportResponse(report))
}

// ReconcileSKU godoc
// @Summary      Conciliar una SKU
// @Tags         admin
// @Security     Bearer
// @Produce      json
// @Param        sku  path  string  true  "SKU"
// @Success      200  {object}  dto.ReconcileResultResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/admin/reconcile/{sku} [post]
func (h *ReconcileHandler) ReconcileSKU(c *fiber.Ctx) error {
	res, err := h.engine.ReconcileSKU(c.Context(), c.Params("sku"), entity.DriftSourceManual)
	if res == nil {
		return writeError(c, h.log, err)
	}
	switch res.Status {
	case ledger.StatusFailed, ledger.StatusSkipped:
		return writeError(c, h.log, res.Err)
	}
	// una desviación escalada igual quedó corregida: se informa en el cuerpo.
	return c.JSON(toReconcileResultResponse(res))
}
