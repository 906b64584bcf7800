// Package pdf genera el reporte de auditoría de movimientos de una SKU.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: SKU + rango          │  versión + fecha de emisión │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: contadores + disponible + total                  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Fecha | Operación | Referencia | Δ | Antes | Después │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: QR con sku/versión + leyenda                       │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

var _ ledger.MovementReportRenderer = (*MovementReportGenerator)(nil)

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorDebit   = &props.Color{Red: 170, Green: 30, Blue: 30}
)

const dateLayout = "2006-01-02 15:04"

// MovementReportGenerator implementa ledger.MovementReportRenderer usando Maroto v2.
type MovementReportGenerator struct {
	author string
	now    func() time.Time
}

// NewMovementReportGenerator construye el generador; author va en los metadatos del PDF.
func NewMovementReportGenerator(author string) *MovementReportGenerator {
	return &MovementReportGenerator{author: author, now: func() time.Time { return time.Now().UTC() }}
}

// RenderMovementReport genera el PDF y devuelve sus bytes.
func (g *MovementReportGenerator) RenderMovementReport(
	_ context.Context,
	snapshot *ledger.Snapshot,
	movements []*entity.Movement,
	from, to *time.Time,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Movimientos "+snapshot.Record.SKU, true).
		WithAuthor(g.author, true).
		Build()

	m := maroto.New(cfg)
	issued := g.now()

	m.AddRows(headerRow(snapshot.Record, from, to, issued))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRows(snapshot)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	if len(movements) == 0 {
		m.AddRows(row.New(8).Add(col.New(12).Add(
			text.New("Sin movimientos en el rango.", props.Text{Size: 8, Align: align.Center, Top: 2, Color: colorGray}),
		)))
	}
	m.AddRows(movementRows(movements)...)

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow(snapshot.Record, issued))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

func headerRow(rec *entity.LedgerRecord, from, to *time.Time, issued time.Time) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New("HISTORIAL DE MOVIMIENTOS", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(rec.SKU, props.Text{Style: fontstyle.Bold, Size: 13, Top: 6}),
			text.New("Rango: "+formatRange(from, to), props.Text{Size: 8, Top: 13, Color: colorGray}),
		),
		col.New(5).Add(
			text.New(fmt.Sprintf("Versión %d", rec.Version), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 1,
			}),
			text.New("Emitido: "+issued.Format(dateLayout)+" UTC", props.Text{
				Size: 8, Align: align.Right, Top: 8, Color: colorGray,
			}),
		),
	)
}

// summaryRows: contadores vivos en dos columnas y los dos derivados resaltados.
func summaryRows(s *ledger.Snapshot) []core.Row {
	c := s.Record.Counters
	pair := func(label string, v decimal.Decimal) core.Col {
		return col.New(3).Add(
			text.New(label, props.Text{Size: 7, Color: colorGray, Top: 1}),
			text.New(formatQty(v), props.Text{Style: fontstyle.Bold, Size: 9, Top: 5}),
		)
	}
	return []core.Row{
		row.New(11).Add(
			pair("PO", c.PO), pair("GRN", c.GRN), pair("Putaway", c.Putaway), pair("Picklist", c.Picklist),
		),
		row.New(11).Add(
			pair("Devolución try&buy", c.ReturnTryAndBuy),
			pair("Devolución otra", c.ReturnOther),
			col.New(3).Add(
				text.New("Disponible para picking", props.Text{Size: 7, Color: colorPrimary, Top: 1}),
				text.New(formatQty(s.AvailableForPicking), props.Text{Style: fontstyle.Bold, Size: 10, Top: 5, Color: colorPrimary}),
			),
			col.New(3).Add(
				text.New("Inventario total", props.Text{Size: 7, Color: colorPrimary, Top: 1}),
				text.New(formatQty(s.TotalInventory), props.Text{Style: fontstyle.Bold, Size: 10, Top: 5, Color: colorPrimary}),
			),
		),
	}
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Fecha", 2, align.Left),
		h("Operación", 2, align.Left),
		h("Referencia", 3, align.Left),
		h("Δ", 1, align.Right),
		h("Antes", 1, align.Right),
		h("Después", 1, align.Right),
		h("Usuario", 2, align.Left),
	)
}

func movementRows(movements []*entity.Movement) []core.Row {
	out := make([]core.Row, 0, len(movements))
	for _, mv := range movements {
		deltaProps := props.Text{Size: 7.5, Align: align.Right, Top: 1, Right: 1}
		if mv.QuantityChange.IsNegative() {
			deltaProps.Color = colorDebit
		}
		out = append(out, row.New(6).Add(
			col.New(2).Add(text.New(mv.CreatedAt.UTC().Format(dateLayout), props.Text{Size: 7.5, Top: 1, Left: 1})),
			col.New(2).Add(text.New(string(mv.OperationType), props.Text{Size: 7.5, Top: 1, Left: 1})),
			col.New(3).Add(text.New(truncate(mv.ReferenceID, 34), props.Text{Size: 7.5, Top: 1, Left: 1})),
			col.New(1).Add(text.New(signed(mv.QuantityChange), deltaProps)),
			col.New(1).Add(text.New(formatQty(mv.PreviousQuantity), props.Text{Size: 7.5, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(formatQty(mv.NewQuantity), props.Text{Size: 7.5, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(truncate(mv.PerformedBy, 22), props.Text{Size: 7.5, Top: 1, Left: 1})),
		))
	}
	return out
}

// footerRow: QR con sku y versión para cotejar el reporte contra el ledger.
func footerRow(rec *entity.LedgerRecord, issued time.Time) core.Row {
	payload := fmt.Sprintf("sku=%s;version=%d;issued=%s", rec.SKU, rec.Version, issued.Format(time.RFC3339))
	return row.New(30).Add(
		col.New(3).Add(code.NewQr(payload, props.Rect{Percent: 95, Center: true})),
		col.New(9).Add(
			text.New("Reporte generado desde el log de movimientos (append-only).", props.Text{
				Size: 8, Top: 4, Left: 3, Color: colorGray,
			}),
			text.New("Los contadores del resumen corresponden a la versión indicada en el encabezado.", props.Text{
				Size: 7, Top: 10, Left: 3, Color: colorGray,
			}),
		),
	)
}

func formatRange(from, to *time.Time) string {
	f, t := "inicio", "hoy"
	if from != nil {
		f = from.UTC().Format(dateLayout)
	}
	if to != nil {
		t = to.UTC().Format(dateLayout)
	}
	return f + " a " + t
}

// formatQty quita ceros decimales sobrantes: 40.0000 → "40", 2.5000 → "2.5".
func formatQty(d decimal.Decimal) string {
	return d.String()
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
