package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/control"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/status"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12
	defaultInterval  = 500 * time.Millisecond
	minInterval      = 100 * time.Millisecond
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
)

// wsEnvelope is one message on the live feed.
type wsEnvelope struct {
	Type string             `json:"type"`
	Data *status.StatusJSON `json:"data,omitempty"`
}

// The page is served from the prop itself and carries no credentials.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams the status document. A message is written when the
// prop state changed since the last one, and at least every maxInterval.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	interval := parseInterval(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go s.drain(conn, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	last, err := s.sendState(conn)
	if err != nil {
		s.log.Debugw("websocket write failed", "err", err)
		return
	}
	lastSent := time.Now()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debugw("websocket ping failed", "err", err)
				return
			}
		case <-ticker.C:
			if s.tracker.Snapshot().Prop == last && time.Since(lastSent) < maxInterval {
				continue
			}
			if last, err = s.sendState(conn); err != nil {
				s.log.Debugw("websocket write failed", "err", err)
				return
			}
			lastSent = time.Now()
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func parseInterval(r *http.Request) time.Duration {
	q := r.URL.Query()
	if s := q.Get("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d >= minInterval && d <= maxInterval {
			return d
		}
	}
	if ms := q.Get("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			if d := time.Duration(v) * time.Millisecond; d >= minInterval {
				return d
			}
		}
	}
	return defaultInterval
}

// drain reads control frames until the peer goes away.
func (s *Server) drain(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// sendState writes the current status and returns the prop state it carried.
func (s *Server) sendState(conn *websocket.Conn) (control.State, error) {
	snap := s.tracker.Snapshot()
	sj := status.Build(snap)
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return snap.Prop, conn.WriteJSON(wsEnvelope{Type: "state", Data: &sj})
}
