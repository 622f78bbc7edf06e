package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/service/orders"
)

type placeOrderRequest struct {
	UserID     string `json:"user_id"`
	PaymentRef string `json:"payment_ref"`
	Items      []struct {
		ProductID  string `json:"product_id"`
		Size       string `json:"size"`
		Qty        int32  `json:"qty"`
		PriceMinor int64  `json:"price_minor"`
	} `json:"items"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	in := orders.PlaceOrderInput{
		UserID:     req.UserID,
		PaymentRef: req.PaymentRef,
		Actor:      actorFrom(r),
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, orders.PlaceOrderItem{
			ProductID:  item.ProductID,
			Size:       item.Size,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}

	order, err := s.orders.PlaceOrder(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

type advanceStatusRequest struct {
	Status      string `json:"status"`
	Courier     string `json:"courier,omitempty"`
	TrackingRef string `json:"tracking_ref,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

func (s *Server) handleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	var req advanceStatusRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	order, err := s.orders.AdvanceStatus(r.Context(), chi.URLParam(r, "orderID"),
		domain.OrderStatus(req.Status), actorFrom(r), orders.StatusExtra{
			Courier:     req.Courier,
			TrackingRef: req.TrackingRef,
			Comment:     req.Comment,
		})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

func (s *Server) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	listed, err := s.orders.ListByUser(r.Context(), chi.URLParam(r, "userID"), limitFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	result := make([]orderDTO, 0, len(listed))
	for _, order := range listed {
		result = append(result, toOrderDTO(order))
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleOrderLedger(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.ListByRef(r.Context(), domain.LedgerRef{
		Kind: domain.RefKindOrder,
		ID:   chi.URLParam(r, "orderID"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func limitFrom(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
