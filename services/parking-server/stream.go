package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Jak dlouho smí trvat zápis jedné zprávy klientovi, než ho prohlásíme za nedostupného.
const streamWriteTimeout = 10 * time.Second

// StreamHandler je Subscription Endpoint: dlouhá spojení, která dostávají živé události.
// Životní cyklus spojení: OPEN -> REGISTERED -> (DELIVERING)* -> CLOSED.
// Register je VŽDY spárován s Unregister (defer), i na chybových cestách.
type StreamHandler struct {
	hub       *Hub
	dir       *Directory // nil = filtry parkovišť se neověřují
	heartbeat time.Duration
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

func NewStreamHandler(hub *Hub, dir *Directory, heartbeat time.Duration, corsOrigin string, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		hub:       hub,
		dir:       dir,
		heartbeat: heartbeat,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return corsOrigin == "*" || origin == "" || origin == corsOrigin
			},
		},
	}
}

// topicKeys převede ?lot=1&lot=2 na klíče Hubu. Bez parametru = všechna parkoviště.
func (h *StreamHandler) topicKeys(ctx context.Context, r *http.Request) ([]string, error) {
	lots := r.URL.Query()["lot"]
	if len(lots) == 0 {
		return []string{SpotStateAllKey, LotEventAllKey}, nil
	}

	keys := make([]string, 0, 2*len(lots))
	for _, raw := range lots {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: lot %q není číslo", ErrMalformedMessage, raw)
		}
		if h.dir != nil {
			if err := h.dir.CheckLot(ctx, id); err != nil {
				return nil, err
			}
		}
		keys = append(keys, SpotStateKey(id), LotEventKey(id))
	}
	return keys, nil
}

func writeKeyError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrUnknownLot) {
		http.Error(w, "Parkoviště neexistuje", http.StatusNotFound)
		return
	}
	http.Error(w, "Neplatný parametr lot (musí být číslo)", http.StatusBadRequest)
}

// HandleSSE: GET /events (Server-Sent Events).
func (h *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	keys, err := h.topicKeys(r.Context(), r)
	if err != nil {
		writeKeyError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming není podporován", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.hub.Register(uuid.NewString(), keys)
	defer h.hub.Unregister(sub)
	log := h.logger.With("subscriber", sub.ID(), "transport", "sse")
	log.Info("Klient připojen", "keys", keys)

	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("Klient se odpojil")
			return
		case <-sub.Done():
			log.Info("Odběr ukončen Hubem", "reason", sub.Err())
			return
		case msg := <-sub.Events():
			_ = rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := writeSSE(w, msg); err != nil {
				log.Info("Zápis klientovi selhal", "error", fmt.Errorf("%w: %w", ErrSubscriberUnreachable, err))
				return
			}
			flusher.Flush()
		case <-ticker.C:
			_ = rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				log.Info("Heartbeat selhal, klient je pryč", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE zapíše jednu zprávu ve formátu text/event-stream.
func writeSSE(w http.ResponseWriter, msg Message) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", msg.Seq, msg.Name, msg.Data)
	return err
}

// wsFrame je obálka zprávy pro WebSocket klienty.
type wsFrame struct {
	ID    uint64          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// HandleWS: GET /ws (WebSocket varianta téhož streamu).
func (h *StreamHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	keys, err := h.topicKeys(r.Context(), r)
	if err != nil {
		writeKeyError(w, err)
		return
	}

	// Upgrade při chybě sám odpoví klientovi.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade selhal", "error", err)
		return
	}
	defer conn.Close()

	sub := h.hub.Register(uuid.NewString(), keys)
	defer h.hub.Unregister(sub)
	log := h.logger.With("subscriber", sub.ID(), "transport", "ws")
	log.Info("Klient připojen", "keys", keys)

	// Čtecí smyčka: obsah zpráv od klienta nás nezajímá, jen detekce zavření a pong.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(3 * h.heartbeat))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(3 * h.heartbeat))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			log.Info("Klient se odpojil")
			return
		case <-sub.Done():
			log.Info("Odběr ukončen Hubem", "reason", sub.Err())
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
				time.Now().Add(time.Second))
			return
		case msg := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(wsFrame{ID: msg.Seq, Event: msg.Name, Data: msg.Data}); err != nil {
				log.Info("Zápis klientovi selhal", "error", fmt.Errorf("%w: %w", ErrSubscriberUnreachable, err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				log.Info("Ping selhal, klient je pryč", "error", err)
				return
			}
		}
	}
}
