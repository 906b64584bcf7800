package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Gateway   *ledger.Gateway
	Summary   *ledger.SummaryView
	Audit     *ledger.AuditService
	Reconcile *ledger.ReconciliationEngine
	JWTSecret string
	Log       zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	ledgerHandler := NewLedgerHandler(deps.Gateway, deps.Summary, deps.Audit, deps.Log)
	ledgerGroup := protected.Group("/ledger")
	ledgerGroup.Post("/movements", RequireRole(RoleAdmin, RoleOperator), ledgerHandler.RecordMovement)
	ledgerGroup.Post("/movements/reversals", RequireRole(RoleAdmin), ledgerHandler.ReverseMovement)
	ledgerGroup.Get("/", ledgerHandler.ListSnapshots)
	ledgerGroup.Get("/:sku", ledgerHandler.GetSnapshot)
	ledgerGroup.Get("/:sku/movements", ledgerHandler.ListMovements)
	ledgerGroup.Get("/:sku/movements/report.pdf", ledgerHandler.MovementReport)
	ledgerGroup.Get("/:sku/drift", RequireRole(RoleAdmin, RoleAuditor), ledgerHandler.ListDriftEvents)

	// Conciliación manual (solo admin)
	reconcileHandler := NewReconcileHandler(deps.Reconcile, deps.Log)
	admin := protected.Group("/admin", RequireRole(RoleAdmin))
	admin.Post("/reconcile", reconcileHandler.ReconcileBatch)
	admin.Post("/reconcile/:sku", reconcileHandler.ReconcileSKU)
}
