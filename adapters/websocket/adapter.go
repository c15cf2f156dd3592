package websocket

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"rankview/core"
	"rankview/realtime"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Options tunes the stream handler.
type Options struct {
	// Buffer is the per-connection hub buffer.
	Buffer int
	// Initial returns events written right after the upgrade so a client
	// starts from the current view state.
	Initial func() []core.Event
	Logger  *slog.Logger
}

// Handler returns an http.Handler that upgrades to WebSocket and streams events from the hub.
// Clients may narrow the stream with ?types=leaderboard_changed,profile_changed.
// Snapshot events whose version is not newer than the last one written for
// their type are skipped, so events queued before the initial snapshot never
// overwrite it on the client.
func Handler(hub *realtime.Hub, opts Options) http.Handler {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		types := parseTypes(r.URL.Query().Get("types"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(opts.Buffer, types...)
		defer hub.Unsubscribe(id)

		// reader: handles pongs and notices the client going away
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		var seen versions
		write := func(ev core.Event) bool {
			if !seen.advance(ev) {
				return true
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)) == nil
		}
		if opts.Initial != nil {
			for _, ev := range opts.Initial() {
				if wantsType(types, ev.Type) && !write(ev) {
					return
				}
			}
		}

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					_ = conn.WriteControl(gorillaws.CloseMessage,
						gorillaws.FormatCloseMessage(gorillaws.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
					return
				}
				if !write(ev) {
					logger.Debug("websocket write failed", "remote", r.RemoteAddr)
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(gorillaws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-gone:
				return
			}
		}
	})
}

// versions tracks the last snapshot version written per event type.
type versions map[core.EventType]uint64

func (v *versions) advance(ev core.Event) bool {
	if !ev.IsSnapshot() || ev.Version == 0 {
		return true
	}
	if *v == nil {
		*v = make(versions)
	}
	if ev.Version <= (*v)[ev.Type] {
		return false
	}
	(*v)[ev.Type] = ev.Version
	return true
}

func parseTypes(raw string) []core.EventType {
	var out []core.EventType
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, core.EventType(p))
		}
	}
	return out
}

func wantsType(types []core.EventType, t core.EventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}
