package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"
)

const (
	sseHeartbeat = 15 * time.Second
	wsPingEvery  = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// The player lives on a trusted LAN behind no gateway, so any origin
// may connect.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents streams events as server-sent events. Each frame carries
// the event name plus the full wire message; comment lines keep idle
// connections alive through proxies.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, ch := s.events.Subscribe()
	defer s.events.Unsubscribe(id)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName(msg), msg)
			flusher.Flush()
		}
	}
}

// eventName pulls the event field back out of a marshaled message for
// the SSE event: line.
func eventName(msg []byte) string {
	var env struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(msg, &env); err != nil || env.Event == "" {
		return "message"
	}
	return env.Event
}

// handleWS streams the same events over a websocket. The read loop only
// watches for the client going away; inbound frames are discarded.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Debug().Err(err).Msg("rest: websocket upgrade failed")
		return
	}

	id, ch := s.events.Subscribe()
	done := make(chan struct{})

	go func() {
		ping := time.NewTicker(wsPingEvery)
		defer ping.Stop()
		defer conn.Close()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.events.Unsubscribe(id)
	close(done)
}
