package ticket_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/auth"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/ticketing"
	"ms-events/internal/utils"
)

// Handler maps the purchase endpoints onto the coordinator. All routes here
// run behind the required-auth middleware.
type Handler struct {
	Coordinator *ticketing.Coordinator
	Logger      *logger.Logger
}

func NewHandler(coordinator *ticketing.Coordinator, log *logger.Logger) *Handler {
	return &Handler{Coordinator: coordinator, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/purchases", func(r chi.Router) {
		r.Get("/", h.ListPurchases)
		r.Post("/", h.Purchase)
		r.Put("/{ticketID}/rating", h.Rate)
	})
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	viewer, ok := auth.ViewerFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	tickets, err := h.Coordinator.ListPurchases(r.Context(), viewer)
	if err != nil {
		utils.WriteError(w, "Failed to list purchases", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Purchases retrieved", tickets))
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	viewer, ok := auth.ViewerFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	ticket, err := h.Coordinator.Purchase(r.Context(), viewer, req)
	if err != nil {
		h.Logger.LogPurchase("REJECTED", req.TicketTypeID, fmt.Sprintf("user=%d qty=%d: %v", viewer.UserID, req.Quantity, err))
		utils.WriteError(w, "Purchase failed", err)
		return
	}

	h.Logger.LogPurchase("COMPLETED", req.TicketTypeID, fmt.Sprintf("user=%d qty=%d total=%d", viewer.UserID, req.Quantity, ticket.Quantity))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Purchase completed", ticket))
}

func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	viewer, ok := auth.ViewerFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticketID"), 10, 64)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid ticket id", err.Error()))
		return
	}

	var req models.RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	ticket, err := h.Coordinator.Rate(r.Context(), viewer, ticketID, req)
	if err != nil {
		utils.WriteError(w, "Rating failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Rating saved", ticket))
}
