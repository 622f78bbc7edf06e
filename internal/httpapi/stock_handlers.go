package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

func (s *Server) handleGetStock(w http.ResponseWriter, r *http.Request) {
	stocks, err := s.stock.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toStockDTOs(stocks))
}

type putStockRequest struct {
	Size string `json:"size"`
	Qty  int32  `json:"qty"`
}

// handlePutStock заводит или перезаписывает остаток варианта. Админ-операция:
// обходит условные списания, поэтому наружу клиентам не выставляется.
func (s *Server) handlePutStock(w http.ResponseWriter, r *http.Request) {
	var req putStockRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	if !domain.ValidSize(req.Size) {
		s.writeError(w, domain.ErrSizeInvalid)
		return
	}
	if req.Qty < 0 {
		s.writeError(w, domain.ErrItemQtyInvalid)
		return
	}

	stock := domain.ProductStock{
		ProductID: chi.URLParam(r, "productID"),
		Size:      req.Size,
		Qty:       req.Qty,
	}
	if err := s.stock.Put(r.Context(), stock); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stockDTO{ProductID: stock.ProductID, Size: stock.Size, Qty: stock.Qty})
}
