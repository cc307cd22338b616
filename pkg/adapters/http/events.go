package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// eventFilter keeps the event types listed in a comma separated ?watch=
// value. An empty filter keeps everything.
type eventFilter map[domain.EventType]struct{}

func parseWatch(raw string) eventFilter {
	if raw == "" {
		return nil
	}
	f := eventFilter{}
	for _, field := range strings.Split(raw, ",") {
		if field = strings.TrimSpace(field); field != "" {
			f[domain.EventType(field)] = struct{}{}
		}
	}
	return f
}

func (f eventFilter) keep(t domain.EventType) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[t]
	return ok
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	filter := parseWatch(r.URL.Query().Get("watch"))
	events, cancel := s.Viewer.Subscribe(r.Context())
	defer cancel()

	s.logger.Info("SSE client connected")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !filter.keep(ev.Type) {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("SSE: event encode failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
			flusher.Flush()
		}
	}
}

// SubscribeWebsocket handles GET /ws. It pushes load events as JSON text
// messages; anything the client sends is ignored.
func (s *Server) SubscribeWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.Viewer.Subscribe(r.Context())
	defer cancel()

	// The read loop notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("WebSocket read failed", "error", err)
				}
				return
			}
		}
	}()

	filter := parseWatch(r.URL.Query().Get("watch"))
	if err := s.writeWS(conn, map[string]string{"type": "connected"}); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !filter.keep(ev.Type) {
				continue
			}
			if err := s.writeWS(conn, ev); err != nil {
				s.logger.Debug("WebSocket write failed", "error", err)
				return
			}
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
