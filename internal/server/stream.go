package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const streamWriteWait = 10 * time.Second

type tokenEvent struct {
	WSToken string `json:"wsToken"`
}

// handleWSTokenStream pushes the current token on connect and after every change.
func (s *Server) handleWSTokenStream(w http.ResponseWriter, r *http.Request) {
	if !s.trackStream() {
		writeJSON(w, http.StatusServiceUnavailable, okResponse{Msg: "server shutting down"})
		return
	}
	defer s.streams.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("level=WARN event=ws_stream_upgrade_failed err=%q", err.Error())
		return
	}
	defer conn.Close()

	updates, cancel := s.token.Subscribe()
	defer cancel()

	if err := writeTokenEvent(conn, s.token.Get()); err != nil {
		return
	}

	// Reads only detect the peer going away; client frames are discarded.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()
	for {
		select {
		case token := <-updates:
			if err := writeTokenEvent(conn, token); err != nil {
				log.Printf("level=WARN event=ws_stream_write_failed err=%q", err.Error())
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-s.closing:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}
	}
}

func writeTokenEvent(conn *websocket.Conn, token string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(tokenEvent{WSToken: token})
}
