package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// RegisterHandlers mounts the workflow routes on g.
func RegisterHandlers(g *echo.Group, s *Server) {
	g.GET("/workflows", s.ListWorkflows)
	g.POST("/workflows", s.SubmitWorkflow)
	g.GET("/workflows/:name", s.GetWorkflow)
	g.DELETE("/workflows/:name", s.DeleteWorkflow)
	g.GET("/workflows/:name/logs", s.StreamWorkflowLogs)
	g.GET("/workflows/:name/logs/ws", s.StreamWorkflowLogsWS)
	g.GET("/workflows/:name/nodes/:nodeId/pod", s.ResolvePod)
	g.GET("/templates", s.ListTemplates)
}

// ListWorkflows returns one page of slim workflows
// (GET /api/workflows?limit=&cursor=)
func (s *Server) ListWorkflows(c echo.Context) error {
	opts, err := bindListOptions(c)
	if err != nil {
		return err
	}

	page, err := s.svc.List(c.Request().Context(), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// GetWorkflow returns a single slim workflow with its nodes
// (GET /api/workflows/:name)
func (s *Server) GetWorkflow(c echo.Context) error {
	wf, err := s.svc.GetWorkflow(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

// DeleteWorkflow deletes a workflow run
// (DELETE /api/workflows/:name)
func (s *Server) DeleteWorkflow(c echo.Context) error {
	if err := s.svc.DeleteWorkflow(c.Request().Context(), c.Param("name")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": true})
}

// SubmitWorkflow starts a run from a template
// (POST /api/workflows)
func (s *Server) SubmitWorkflow(c echo.Context) error {
	var req models.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	name, err := s.svc.Submit(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, models.SubmitResponse{Name: name})
}

// ListTemplates lists the templates a run can be submitted from
// (GET /api/templates)
func (s *Server) ListTemplates(c echo.Context) error {
	templates, err := s.svc.ListTemplates(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, templates)
}

// ResolvePod reports the pod backing a node
// (GET /api/workflows/:name/nodes/:nodeId/pod)
func (s *Server) ResolvePod(c echo.Context) error {
	podName, err := s.svc.ResolvePodName(c.Request().Context(), c.Param("name"), c.Param("nodeId"))
	if err != nil {
		return err
	}
	if podName == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no pod found for node "+c.Param("nodeId"))
	}
	return c.JSON(http.StatusOK, map[string]string{"podName": podName})
}
