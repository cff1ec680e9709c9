package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"serverwatch/internal/domain"
)

const streamWriteTimeout = 5 * time.Second

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(u.Host), strings.TrimSpace(r.Host))
	},
}

type streamEvent struct {
	Type    string              `json:"type"` // "snapshot" | "check"
	Servers []domain.Server     `json:"servers,omitempty"`
	Server  *domain.Server      `json:"server,omitempty"`
	Result  *domain.CheckResult `json:"result,omitempty"`
}

// hub fans stream events out to connected websocket clients.
type hub struct {
	log   *zap.Logger
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newHub(log *zap.Logger) *hub {
	return &hub{log: log, conns: make(map[*websocket.Conn]struct{})}
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) drop(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	_ = c.Close()
}

func (h *hub) broadcast(ev streamEvent) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := writeEvent(c, ev); err != nil {
			h.drop(c)
		}
	}
}

func writeEvent(c *websocket.Conn, ev streamEvent) error {
	_ = c.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return c.WriteJSON(ev)
}

// BroadcastResult pushes one applied check result to every stream client.
// Wire this into the scheduler's Notify hook.
func (s *Server) BroadcastResult(srv domain.Server, res domain.CheckResult) {
	s.hub.broadcast(streamEvent{Type: "check", Server: &srv, Result: &res})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	if err := writeEvent(conn, streamEvent{Type: "snapshot", Servers: s.reg.SnapshotAll()}); err != nil {
		_ = conn.Close()
		return
	}
	s.hub.add(conn)

	// read pump: we never expect client messages, but reading is how we learn
	// the peer went away
	go func() {
		defer s.hub.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
