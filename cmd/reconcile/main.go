// Comando reconcile ejecuta una conciliación única del ledger contra el log de movimientos.
//
//	reconcile -sku SKU001          concilia una SKU
//	reconcile -all                 concilia todo el ledger
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/bootstrap"
	"github.com/jhoicas/inventory-ledger/internal/domain"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
	"github.com/jhoicas/inventory-ledger/pkg/config"
	"github.com/jhoicas/inventory-ledger/pkg/logger"
)

func main() {
	sku := flag.String("sku", "", "SKU a conciliar")
	all := flag.Bool("all", false, "conciliar todas las SKUs")
	flag.Parse()

	if (*sku == "") == !*all {
		fmt.Fprintln(os.Stderr, "uso: reconcile -sku <SKU> | -all")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: cfg.App.Name + "-reconcile"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Build(ctx, cfg, log.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar servicios")
	}

	code := run(ctx, svc.Reconcile, *sku, log)
	svc.Close()
	stop()
	os.Exit(code)
}

// run devuelve el código de salida: 0 ok, 1 fallas, 3 desviación recurrente escalada.
func run(ctx context.Context, engine *ledger.ReconciliationEngine, sku string, log *logger.Logger) int {
	if sku != "" {
		res, err := engine.ReconcileSKU(ctx, sku, entity.DriftSourceCLI)
		if res != nil {
			log.Info().Str("sku", res.SKU).Str("status", string(res.Status)).Int("attempts", res.Attempts).Msg("resultado")
		}
		switch {
		case errors.Is(err, domain.ErrDriftDetected):
			return 3
		case err != nil:
			log.Error().Err(err).Str("sku", sku).Msg("conciliación fallida")
			return 1
		}
		return 0
	}

	report, err := engine.ReconcileAll(ctx, entity.DriftSourceCLI)
	if err != nil {
		log.Error().Err(err).Msg("conciliación interrumpida")
		return 1
	}
	for _, r := range report.Results {
		ev := log.Warn().Str("sku", r.SKU).Str("status", string(r.Status))
		if r.Err != nil {
			ev = ev.Err(r.Err)
		}
		ev.Msg("SKU no sincronizada")
	}
	switch {
	case len(report.Escalated) > 0:
		return 3
	case report.Failed > 0 || report.Skipped > 0:
		return 1
	}
	return 0
}
