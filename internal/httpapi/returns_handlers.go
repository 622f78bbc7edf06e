package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/service/returns"
)

type requestReturnRequest struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Items   []struct {
		OrderItemID string `json:"order_item_id"`
		Qty         int32  `json:"qty"`
		Reason      string `json:"reason,omitempty"`
	} `json:"items"`
}

func (s *Server) handleRequestReturn(w http.ResponseWriter, r *http.Request) {
	var req requestReturnRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	in := returns.RequestReturnInput{
		OrderID: req.OrderID,
		UserID:  req.UserID,
		Actor:   actorFrom(r),
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, returns.ReturnItemInput{
			OrderItemID: item.OrderItemID,
			Qty:         item.Qty,
			Reason:      item.Reason,
		})
	}

	rr, err := s.returns.RequestReturn(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, toReturnDTO(rr))
}

func (s *Server) handleGetReturn(w http.ResponseWriter, r *http.Request) {
	rr, err := s.returns.GetReturn(r.Context(), chi.URLParam(r, "returnID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toReturnDTO(rr))
}

type schedulePickupRequest struct {
	Comment string `json:"comment,omitempty"`
}

func (s *Server) handleSchedulePickup(w http.ResponseWriter, r *http.Request) {
	var req schedulePickupRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	rr, err := s.returns.SchedulePickup(r.Context(), chi.URLParam(r, "returnID"), actorFrom(r), req.Comment)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toReturnDTO(rr))
}

type recordInspectionRequest struct {
	Outcome string `json:"outcome"`
	Notes   string `json:"notes,omitempty"`
	Items   []struct {
		OrderItemID string `json:"order_item_id"`
		Condition   string `json:"condition"`
	} `json:"items,omitempty"`
}

func (s *Server) handleRecordInspection(w http.ResponseWriter, r *http.Request) {
	var req recordInspectionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	items := make([]returns.InspectionItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, returns.InspectionItemInput{
			OrderItemID: item.OrderItemID,
			Condition:   item.Condition,
		})
	}

	rr, err := s.returns.RecordInspection(r.Context(), chi.URLParam(r, "returnID"),
		returns.InspectionOutcome(req.Outcome), items, actorFrom(r), req.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toReturnDTO(rr))
}

func (s *Server) handleListUserReturns(w http.ResponseWriter, r *http.Request) {
	listed, err := s.returns.ListByUser(r.Context(), chi.URLParam(r, "userID"), limitFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	result := make([]returnDTO, 0, len(listed))
	for _, rr := range listed {
		result = append(result, toReturnDTO(rr))
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReturnLedger(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.ListByRef(r.Context(), domain.LedgerRef{
		Kind: domain.RefKindReturn,
		ID:   chi.URLParam(r, "returnID"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}
