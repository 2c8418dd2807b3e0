package server

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/interview"
	"github.com/ddsha441981/interview-assistant/internal/logger"
)

// StreamEvents upgrades to a websocket and writes every stage change of the session as a JSON
// frame. The first frame describes the stage the session is in when the client connects, so a
// late client still learns where the session stands. The stream ends with a close frame after
// the Finished event. Clients only need to read.
func (s *Server) StreamEvents(c echo.Context) error {
	id := c.Param("id")
	o, err := s.lookup(id)
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}

	// Subscribe before the handshake completes so no change made after it is missed.
	events, unsubscribe := o.Subscribe()
	defer unsubscribe()
	current := snapshot(o.Status(), s.now())

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String(logger.FieldSession, id), zap.Error(err))
		return nil
	}

	log := logger.WithSession(s.logger, id)
	log.Debug("event stream opened", zap.String(logger.FieldStage, string(current.Stage)))

	_ = ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := ws.WriteJSON(current); err != nil {
		log.Debug("write current stage", zap.Error(err))
		_ = ws.Close()
		return nil
	}

	closed := make(chan struct{})
	go s.readPump(ws, closed)
	s.writePump(ws, events, closed, log)

	log.Debug("event stream closed")
	return nil
}

// readPump discards client frames and keeps the read deadline alive on pongs.
func (s *Server) readPump(ws *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(ws *websocket.Conn, events <-chan interview.StageChange, closed <-chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case change, ok := <-events:
			_ = ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"))
				return
			}
			if err := ws.WriteJSON(change); err != nil {
				log.Debug("write stage change", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return

		case <-s.ctx.Done():
			return
		}
	}
}

// snapshot renders a status as a stage change frame.
func snapshot(st interview.Status, at time.Time) interview.StageChange {
	change := interview.StageChange{
		SessionID: st.SessionID,
		Stage:     st.Stage,
		Index:     st.CurrentIndex,
		Question:  st.Question,
		EndReason: st.EndReason,
		Failure:   st.Failure,
		At:        at,
	}
	if n := len(st.Answers); n > 0 {
		last := st.Answers[n-1]
		change.Answer = &last
	}
	if st.Stage.Terminal() {
		summary := st.Summary
		change.Summary = &summary
	}
	return change
}
