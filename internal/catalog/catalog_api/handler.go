package catalog_api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/auth"
	"ms-events/internal/catalog"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/ticketing"
	"ms-events/internal/utils"
)

// Handler maps the catalog endpoints. Reads run behind the optional-auth
// middleware (anonymous viewers get the public catalog), mutations require a
// staff token.
type Handler struct {
	Catalog     *catalog.Service
	Coordinator *ticketing.Coordinator
	Logger      *logger.Logger
}

func NewHandler(catalogService *catalog.Service, coordinator *ticketing.Coordinator, log *logger.Logger) *Handler {
	return &Handler{Catalog: catalogService, Coordinator: coordinator, Logger: log}
}

// RegisterReadRoutes mounts the viewer-facing catalog reads.
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/events", h.ListEvents)
	r.Get("/events/{eventID}", h.GetEvent)
	r.Get("/events/{eventID}/ticket-types", h.ListTicketTypes)
	r.Get("/events/{eventID}/ticket-types/{ticketTypeID}", h.GetTicketType)
}

// RegisterStaffRoutes mounts the catalog mutations.
func (h *Handler) RegisterStaffRoutes(r chi.Router) {
	r.Post("/events", h.CreateEvent)
	r.Patch("/events/{eventID}", h.UpdateEvent)
	r.Delete("/events/{eventID}", h.DeleteEvent)
	r.Put("/events/{eventID}/ticket-types", h.ReplaceTicketTypes)
	r.Post("/events/{eventID}/ticket-types", h.CreateTicketType)
	r.Patch("/events/{eventID}/ticket-types/{ticketTypeID}", h.UpdateTicketType)
	r.Delete("/events/{eventID}/ticket-types/{ticketTypeID}", h.DeleteTicketType)
}

func viewerOrAnonymous(r *http.Request) models.Viewer {
	viewer, _ := auth.ViewerFrom(r.Context())
	return viewer
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Catalog.ListEvents(r.Context(), viewerOrAnonymous(r))
	if err != nil {
		utils.WriteError(w, "Failed to list events", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Events retrieved", events))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlID(r, "eventID")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid event id", err.Error()))
		return
	}
	event, err := h.Catalog.GetEvent(r.Context(), viewerOrAnonymous(r), eventID)
	if err != nil {
		utils.WriteError(w, "Failed to fetch event", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event retrieved", event))
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var create models.EventCreate
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	event, err := h.Catalog.CreateEvent(r.Context(), create)
	if err != nil {
		utils.WriteError(w, "Failed to create event", err)
		return
	}
	h.Logger.LogDatabase("INSERT", "events", "created event "+strconv.FormatInt(event.ID, 10))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Event created", event))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlID(r, "eventID")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid event id", err.Error()))
		return
	}

	var update models.EventUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	// The nested ticket-type list is a full reconciliation. It runs first
	// and atomically; a sold-ticket conflict aborts the whole edit before
	// any event field changes.
	if update.TicketTypes != nil {
		if _, err := h.Coordinator.ReplaceTicketTypes(r.Context(), eventID, update.TicketTypes); err != nil {
			utils.WriteError(w, "Failed to update ticket types", err)
			return
		}
	}

	event, err := h.Catalog.UpdateEventFields(r.Context(), eventID, update)
	if err != nil {
		utils.WriteError(w, "Failed to update event", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event updated", event))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlID(r, "eventID")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid event id", err.Error()))
		return
	}
	if err := h.Coordinator.DeleteEvent(r.Context(), eventID); err != nil {
		utils.WriteError(w, "Failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListTicketTypes(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlID(r, "eventID")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid event id", err.Error()))
		return
	}
	types, err := h.Catalog.ListTicketTypes(r.Context(), viewerOrAnonymous(r), eventID)
	if err != nil {
		utils.WriteError(w, "Failed to list ticket types", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket types retrieved", types))
}

func (h *Handler) GetTicketType(w http.ResponseWriter, r *http.Request) {
	ticketTypeID, err := urlID(r, "ticketTypeID")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid ticket type id", err.Error()))
		return
	}
	tt, err := h.Catalog.GetTicketType(r.Context(), viewerOrAnonymous(r), ticketTypeID)
	if err != nil {
		utils.WriteError(w, "Failed to fetch ticket type", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket type retrieved", tt))
}

func (h *Handler) CreateTicketType(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlID(r, "eventID")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid event id", err.Error()))
		return
	}

	var def models.TicketTypeDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	tt, err := h.Catalog.CreateTicketType(r.Context(), eventID, def)
	if err != nil {
		utils.WriteError(w, "Failed to create ticket type", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Ticket type created", tt))
}

func (h *Handler) UpdateTicketType(w http.ResponseWriter, r *http.Request) {
	ticketTypeID, err := urlID(r, "ticketTypeID")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid ticket type id", err.Error()))
		return
	}

	var update models.TicketTypeUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	tt, err := h.Catalog.UpdateTicketType(r.Context(), ticketTypeID, update)
	if err != nil {
		utils.WriteError(w, "Failed to update ticket type", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket type updated", tt))
}

func (h *Handler) DeleteTicketType(w http.ResponseWriter, r *http.Request) {
	ticketTypeID, err := urlID(r, "ticketTypeID")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid ticket type id", err.Error()))
		return
	}
	if err := h.Coordinator.DeleteTicketType(r.Context(), ticketTypeID); err != nil {
		utils.WriteError(w, "Failed to delete ticket type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReplaceTicketTypes(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlID(r, "eventID")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid event id", err.Error()))
		return
	}

	var defs []models.TicketTypeDefinition
	if err := json.NewDecoder(r.Body).Decode(&defs); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	types, err := h.Coordinator.ReplaceTicketTypes(r.Context(), eventID, defs)
	if err != nil {
		utils.WriteError(w, "Failed to replace ticket types", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket types replaced", types))
}
