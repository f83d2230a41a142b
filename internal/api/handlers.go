// Package api contains the HTTP handlers of the dashboard backend.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lukas-pastva/argo-workflows-ui/internal/argo"
	"github.com/lukas-pastva/argo-workflows-ui/internal/logging"
	"github.com/lukas-pastva/argo-workflows-ui/internal/services"
	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// WorkflowService is the pipeline the handlers delegate to.
type WorkflowService interface {
	List(ctx context.Context, opts services.ListOptions) (*models.WorkflowPage, error)
	GetWorkflow(ctx context.Context, name string) (*models.SlimWorkflow, error)
	DeleteWorkflow(ctx context.Context, name string) error
	ListTemplates(ctx context.Context) ([]models.TemplateSummary, error)
	Submit(ctx context.Context, req models.SubmitRequest) (string, error)
	ResolvePodName(ctx context.Context, workflowName, nodeID string) (string, error)
	StreamLogs(ctx context.Context, workflowName string, sink services.LogSink, opts services.LogOptions) error
}

// Server holds the dependencies for the API server.
type Server struct {
	svc      WorkflowService
	logger   *logging.Logger
	upgrader websocket.Upgrader
	version  string
}

// NewServer creates a new Server.
func NewServer(svc WorkflowService, logger *logging.Logger, version string) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		svc:    svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 32 << 10,
		},
		version: version,
	}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "argo-workflows-ui",
		Version:   s.version,
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// statusFor maps an error to the status reported to the client. Upstream
// statuses are passed through verbatim.
func statusFor(err error) int {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.Is(err, services.ErrPodNotResolved), errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest
	}
	if status, ok := argo.StatusCode(err); ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders every handler error as a problem document.
func ErrorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := statusFor(err)
		detail := err.Error()
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			detail = fmt.Sprint(httpErr.Message)
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
		}

		if writeErr := writeError(c, status, http.StatusText(status), detail); writeErr != nil {
			logger.Error("failed to write error response", "error", writeErr)
		}
	}
}

// writeError writes an RFC 7807 Problem Details JSON error response
func writeError(c echo.Context, status int, title, detail string) error {
	problem := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	if c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}
	return c.JSON(status, problem)
}
