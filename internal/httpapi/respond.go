package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Product string `json:"product_id,omitempty"`
	Size    string `json:"size,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Warn("failed to encode response body")
	}
}

// writeError переводит доменные ошибки в HTTP-статусы: конфликтные исходы —
// 409, нарушения политики возвратов — 422, отсутствующие сущности — 404,
// ошибки входных данных — 400.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}

	var conflict *domain.StockConflictError
	if errors.As(err, &conflict) {
		resp.Product = conflict.ProductID
		resp.Size = conflict.Size
		s.writeJSON(w, http.StatusConflict, resp)
		return
	}

	switch {
	case errors.Is(err, domain.ErrStockConflict),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrDuplicateRefund):
		s.writeJSON(w, http.StatusConflict, resp)
	case domain.IsPolicyViolation(err):
		s.writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrReturnNotFound),
		errors.Is(err, domain.ErrStockNotFound),
		errors.Is(err, domain.ErrLedgerEntryNotFound):
		s.writeJSON(w, http.StatusNotFound, resp)
	case isValidationError(err):
		s.writeJSON(w, http.StatusBadRequest, resp)
	default:
		s.logger.WithError(err).Error("request failed")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		domain.ErrUserRequired,
		domain.ErrItemsRequired,
		domain.ErrProductRequired,
		domain.ErrSizeInvalid,
		domain.ErrItemQtyInvalid,
		domain.ErrItemPriceInvalid,
		domain.ErrInvalidStatus,
		domain.ErrOrderIDRequired,
		domain.ErrOrderItemIDRequired,
		domain.ErrCourierRequired,
		domain.ErrTrackingRefRequired,
		domain.ErrAmountNegative,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}
