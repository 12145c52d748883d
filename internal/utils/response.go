package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ms-events/internal/ticketing"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, errMsg string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError maps the coordinator's error taxonomy onto HTTP status codes:
// not-found 404, authorization failures 403, inventory and sold-ticket
// conflicts 409 (with the detail the client needs to adjust), bad input 400,
// everything else 500.
func WriteError(w http.ResponseWriter, message string, err error) {
	var insufficient *ticketing.InsufficientInventoryError
	var sold *ticketing.HasSoldTicketsError

	switch {
	case errors.As(err, &insufficient):
		resp := ErrorResponse(message, err.Error())
		resp.Data = map[string]int{"remaining": insufficient.Remaining}
		WriteJSON(w, http.StatusConflict, resp)
	case errors.As(err, &sold):
		resp := ErrorResponse(message, err.Error())
		resp.Data = map[string]int64{"ticket_type_id": sold.TicketTypeID}
		WriteJSON(w, http.StatusConflict, resp)
	case errors.Is(err, ticketing.ErrNotFound):
		WriteJSON(w, http.StatusNotFound, ErrorResponse(message, err.Error()))
	case errors.Is(err, ticketing.ErrNotAuthorized), errors.Is(err, ticketing.ErrNotOwner):
		WriteJSON(w, http.StatusForbidden, ErrorResponse(message, err.Error()))
	case errors.Is(err, ticketing.ErrInvalidInput):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse(message, err.Error()))
	default:
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse(message, err.Error()))
	}
}
