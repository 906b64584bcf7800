package http

import (
	"github.com/jhoicas/inventory-ledger/internal/application/dto"
	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

func toSnapshotResponse(s *ledger.Snapshot) dto.LedgerSnapshotResponse {
	r := s.Record
	return dto.LedgerSnapshotResponse{
		SKU:                     r.SKU,
		POQuantity:              r.PO,
		GRNQuantity:             r.GRN,
		PutawayQuantity:         r.Putaway,
		PicklistQuantity:        r.Picklist,
		ReturnTryAndBuyQuantity: r.ReturnTryAndBuy,
		ReturnOtherQuantity:     r.ReturnOther,
		TotalAvailableQuantity:  r.TotalAvailableQuantity,
		AvailableForPicking:     s.AvailableForPicking,
		TotalInventory:          s.TotalInventory,
		Version:                 r.Version,
		UpdatedAt:               r.UpdatedAt,
	}
}

func recordResponse(rec *entity.LedgerRecord) *dto.LedgerSnapshotResponse {
	if rec == nil {
		return nil
	}
	s := toSnapshotResponse(ledger.Summarize(rec))
	return &s
}

func toMovementResponse(m *entity.Movement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:               m.ID,
		SKU:              m.SKU,
		OperationType:    string(m.OperationType),
		QuantityChange:   m.QuantityChange,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.NewQuantity,
		ReferenceID:      m.ReferenceID,
		Details:          m.Details,
		PerformedBy:      m.PerformedBy,
		CreatedAt:        m.CreatedAt,
	}
}

func toRecordMovementResponse(out *ledger.Outcome) dto.RecordMovementResponse {
	resp := dto.RecordMovementResponse{
		Duplicate: out.Duplicate,
		Attempts:  out.Attempts,
		Ledger:    toSnapshotResponse(ledger.Summarize(out.Record)),
	}
	if out.Movement != nil {
		m := toMovementResponse(out.Movement)
		resp.Movement = &m
	}
	return resp
}

func toCountersDTO(c entity.Counters) dto.CountersDTO {
	return dto.CountersDTO{
		POQuantity:              c.PO,
		GRNQuantity:             c.GRN,
		PutawayQuantity:         c.Putaway,
		PicklistQuantity:        c.Picklist,
		ReturnTryAndBuyQuantity: c.ReturnTryAndBuy,
		ReturnOtherQuantity:     c.ReturnOther,
	}
}

func toDriftEventResponse(ev *entity.DriftEvent) dto.DriftEventResponse {
	return dto.DriftEventResponse{
		ID:              ev.ID,
		SKU:             ev.SKU,
		Previous:        toCountersDTO(ev.Previous),
		Corrected:       toCountersDTO(ev.Corrected),
		PreviousVersion: ev.PreviousVersion,
		NewVersion:      ev.NewVersion,
		Source:          ev.Source,
		DetectedAt:      ev.DetectedAt,
	}
}

func toReconcileResultResponse(res *ledger.ReconcileResult) dto.ReconcileResultResponse {
	out := dto.ReconcileResultResponse{
		SKU:       res.SKU,
		Status:    string(res.Status),
		Attempts:  res.Attempts,
		Escalated: res.Escalated,
		Before:    recordResponse(res.Before),
		After:     recordResponse(res.After),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func toReconcileReportResponse(r *ledger.BatchReport) dto.ReconcileReportResponse {
	out := dto.ReconcileReportResponse{
		Source:     r.Source,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Checked:    r.Checked,
		InSync:     r.InSync,
		Corrected:  r.Corrected,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		Escalated:  r.Escalated,
		Results:    make([]dto.ReconcileResultResponse, 0, len(r.Results)),
	}
	if out.Escalated == nil {
		out.Escalated = []string{}
	}
	for _, res := range r.Results {
		out.Results = append(out.Results, toReconcileResultResponse(res))
	}
	return out
}
