package api

import (
	"context"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	// close codes 4000+status carry the HTTP status of a stream that never
	// started, e.g. 4404 for an unknown workflow
	wsStatusCodeBase = 4000
	wsMaxCloseReason = 123
	wsWriteWait      = 10 * time.Second
)

// wsSink relays log chunks as binary websocket frames.
type wsSink struct {
	conn   *websocket.Conn
	closed bool
}

func (s *wsSink) Open(string) error { return nil }

func (s *wsSink) Reject(status int) error {
	s.close(wsStatusCodeBase+status, http.StatusText(status))
	return nil
}

func (s *wsSink) Write(p []byte) (int, error) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// close sends a single close frame; later calls are no-ops.
func (s *wsSink) close(code int, reason string) {
	if s.closed {
		return
	}
	s.closed = true
	msg := websocket.FormatCloseMessage(code, truncateReason(reason, wsMaxCloseReason))
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

// truncateReason cuts reason to at most limit bytes on a rune boundary. Close
// frames must carry valid UTF-8.
func truncateReason(reason string, limit int) string {
	if len(reason) <= limit {
		return reason
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

// StreamWorkflowLogsWS relays the same stream as StreamWorkflowLogs over a
// websocket (GET /api/workflows/:name/logs/ws)
func (s *Server) StreamWorkflowLogsWS(c echo.Context) error {
	opts, err := bindLogOptions(c)
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already answered the request
		s.logger.Debug("websocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// hijacked connections never cancel the request context, so watch for
	// the client closing instead
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sink := &wsSink{conn: conn}
	name := c.Param("name")
	if err := s.svc.StreamLogs(ctx, name, sink, opts); err != nil {
		s.logger.Warn("websocket log stream failed", "workflow", name, "error", err)
		sink.close(wsStatusCodeBase+statusFor(err), err.Error())
		return nil
	}
	sink.close(websocket.CloseNormalClosure, "")
	return nil
}
