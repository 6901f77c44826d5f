package session

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/drillcoach/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// getUserID extracts the authenticated user ID from the request context.
func getUserID(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value("user_id").(int64)
	return uid, ok
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.Start(r.Context(), userID, req)
	if err != nil {
		writeError(w, err, "Failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	sessionID := mux.Vars(r)["id"]
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Session id is required"})
		return
	}

	var req models.CompleteSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	// The session itself authorizes the user: completing someone else's
	// session is treated as not-found.
	sess, err := h.service.store.GetSession(r.Context(), sessionID)
	if err == nil && sess.UserID != userID {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Session not found"})
		return
	}

	resp, err := h.service.Complete(r.Context(), sessionID, req)
	if err != nil {
		writeError(w, err, "Failed to complete session")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetProgression(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.GetProgression(r.Context(), userID)
	if err != nil {
		log.Printf("[session] GetProgression error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get progression"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	query := r.URL.Query()
	page := intQueryParam(query.Get("page"), 1)
	pageSize := intQueryParam(query.Get("page_size"), 20)

	resp, err := h.service.GetHistory(r.Context(), userID, query.Get("category"), page, pageSize)
	if err != nil {
		log.Printf("[session] GetHistory error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get history"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeError maps the core's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrDrillNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrSessionCompleted):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrEmptyDrillPool):
		log.Printf("[session] configuration error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
	default:
		log.Printf("[session] %s: %v", fallback, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: fallback})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQueryParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}
