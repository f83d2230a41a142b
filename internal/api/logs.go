package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// responseSink streams a log relay straight into the HTTP response, flushing
// after every chunk so lines reach the browser as they arrive.
type responseSink struct {
	res *echo.Response
}

func (s responseSink) Open(contentType string) error {
	h := s.res.Header()
	if contentType != "" {
		h.Set(echo.HeaderContentType, contentType)
	}
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	s.res.WriteHeader(http.StatusOK)
	s.res.Flush()
	return nil
}

func (s responseSink) Reject(status int) error {
	s.res.WriteHeader(status)
	return nil
}

func (s responseSink) Write(p []byte) (int, error) {
	n, err := s.res.Write(p)
	if err != nil {
		return n, err
	}
	s.res.Flush()
	return n, nil
}

// StreamWorkflowLogs relays the upstream log stream of a workflow
// (GET /api/workflows/:name/logs)
func (s *Server) StreamWorkflowLogs(c echo.Context) error {
	opts, err := bindLogOptions(c)
	if err != nil {
		return err
	}

	err = s.svc.StreamLogs(c.Request().Context(), c.Param("name"), responseSink{res: c.Response()}, opts)
	if err != nil && c.Response().Committed {
		s.logger.Warn("log stream aborted", "workflow", c.Param("name"), "error", err)
		return nil
	}
	return err
}
