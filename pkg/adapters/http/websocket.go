package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aretw0/lattice/pkg/bridge"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ConnectWebSocket handles the GET /projects/{id}/ws request. Inbound text
// messages are bridge messages; outbound messages are events. Frames and
// notices reach every client of the project, the result of an inbound
// message only the connection that sent it. A client sends "ready" once its
// canvas is initialized.
func (s *Server) ConnectWebSocket(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "project_id", projectID, "err", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.Streams.Subscribe(projectID)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sess, err := s.Studio.Open(ctx, projectID, s.Streams.Surface(projectID))
	if err != nil {
		result := bridge.NewResult("", err)
		_ = conn.WriteJSON(Event{Type: EventResult, Result: &result})
		return
	}
	defer func() {
		if err := s.Studio.Release(context.WithoutCancel(ctx), sess); err != nil {
			s.logger.Error("session release failed", "project_id", projectID, "err", err)
		}
	}()
	s.logger.Info("websocket connected", "project_id", projectID)

	writerDone := make(chan struct{})
	go s.writeLoop(ctx, conn, events, writerDone)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "project_id", projectID, "err", err)
			}
			break
		}

		var msg bridge.Message
		var result bridge.Result
		if err := json.Unmarshal(data, &msg); err != nil {
			result = bridge.NewResult("", domain.ErrMalformedDocument)
		} else {
			result = sess.Dispatch(ctx, msg)
		}
		s.Streams.Send(projectID, events, Event{Type: EventResult, Result: &result})
	}

	cancel()
	<-writerDone
	s.logger.Info("websocket disconnected", "project_id", projectID)
}

// writeLoop is the only goroutine writing to conn.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan []byte, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Warn("websocket write failed", "err", err)
				conn.Close() // unblocks the reader
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
