package drills

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
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ListDrills(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	drills, err := h.store.ListDrills(category)
	if err != nil {
		log.Printf("[drills] ListDrills error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list drills"})
		return
	}

	writeJSON(w, http.StatusOK, models.DrillListResponse{Drills: drills, Total: len(drills)})
}

func (h *Handler) GetDrill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid drill ID"})
		return
	}

	drill, err := h.store.GetDrill(id)
	if err != nil {
		if errors.Is(err, models.ErrDrillNotFound) {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Drill not found"})
			return
		}
		log.Printf("[drills] GetDrill error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get drill"})
		return
	}

	writeJSON(w, http.StatusOK, drill)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories()
	if err != nil {
		log.Printf("[drills] ListCategories error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list categories"})
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
