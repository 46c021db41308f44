package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
)

// APIHandler sdružuje metody pro obsluhu HTTP požadavků.
// Snapshot dotazy jdou přes SnapshotService, streamy přes StreamHandler.
type APIHandler struct {
	svc     *SnapshotService
	streams *StreamHandler
	metrics *Metrics
	logger  *slog.Logger
}

// NewAPIHandler vytváří novou instanci handleru.
func NewAPIHandler(svc *SnapshotService, streams *StreamHandler, metrics *Metrics, logger *slog.Logger) *APIHandler {
	return &APIHandler{svc: svc, streams: streams, metrics: metrics, logger: logger}
}

// RegisterRoutes mapuje URL cesty na handlery (router z Go 1.22+ s metodami a wildcardy).
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /parking-lots", h.handleListLots)
	mux.HandleFunc("GET /parking-lots/{id}", h.handleGetLot)
	mux.HandleFunc("GET /parking-lots/{id}/occupancy", h.handleOccupancy)

	// Živé události
	mux.HandleFunc("GET /events", h.streams.HandleSSE)
	mux.HandleFunc("GET /ws", h.streams.HandleWS)

	// Healthcheck pro Docker
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", h.metrics.Handler())
}

// handleListLots: GET /parking-lots
func (h *APIHandler) handleListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.svc.ListLots(r.Context())
	if err != nil {
		h.logger.Error("Chyba při získávání parkovišť", "error", err)
		http.Error(w, "Interní chyba serveru", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, lots)
}

// handleGetLot: GET /parking-lots/{id}
func (h *APIHandler) handleGetLot(w http.ResponseWriter, r *http.Request) {
	id, ok := lotIDFromPath(w, r)
	if !ok {
		return
	}

	detail, err := h.svc.LotDetail(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	h.writeJSON(w, detail)
}

// handleOccupancy: GET /parking-lots/{id}/occupancy
func (h *APIHandler) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	id, ok := lotIDFromPath(w, r)
	if !ok {
		return
	}

	occ, err := h.svc.Occupancy(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	h.writeJSON(w, occ)
}

func lotIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Neplatné ID parkoviště (musí být číslo)", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *APIHandler) writeLookupError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, ErrUnknownLot) {
		http.Error(w, "Parkoviště neexistuje", http.StatusNotFound)
		return
	}
	h.logger.Error("Chyba při načítání parkoviště", "id", id, "error", err)
	http.Error(w, "Chyba při načítání dat", http.StatusInternalServerError)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Chyba při zápisu JSON odpovědi", "error", err)
	}
}

// CorsMiddleware přidává CORS hlavičky, aby dashboard z jiné domény mohl volat API.
func CorsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")

		// Preflight request: odpovíme OK a končíme.
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
