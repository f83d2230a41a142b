// Package mcp exposes the workflow pipeline as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lukas-pastva/argo-workflows-ui/internal/services"
	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

const (
	defaultTailLines = 100
	// maxLogBytes caps the output of tail_logs so a tool result stays small.
	maxLogBytes = 64 << 10
)

// WorkflowService is the part of the pipeline the tools use.
type WorkflowService interface {
	List(ctx context.Context, opts services.ListOptions) (*models.WorkflowPage, error)
	GetWorkflow(ctx context.Context, name string) (*models.SlimWorkflow, error)
	DeleteWorkflow(ctx context.Context, name string) error
	ResolvePodName(ctx context.Context, workflowName, nodeID string) (string, error)
	StreamLogs(ctx context.Context, workflowName string, sink services.LogSink, opts services.LogOptions) error
}

type Server struct {
	mcpServer *server.MCPServer
	svc       WorkflowService
}

func NewServer(svc WorkflowService, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Argo Workflows UI",
			version,
			server.WithToolCapabilities(true),
		),
		svc: svc,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List one page of workflows, grouped by template and newest first"),
			mcp.WithNumber("limit", mcp.Description("Page size; the server default when omitted")),
			mcp.WithString("cursor", mcp.Description("nextCursor of the previous page")),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_workflow",
			mcp.WithDescription("Get one workflow including its nodes"),
			mcp.WithString("name", mcp.Required(), mcp.Description("The workflow name")),
		),
		s.handleGetWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"resolve_pod",
			mcp.WithDescription("Find the pod that ran a workflow node"),
			mcp.WithString("workflow", mcp.Required(), mcp.Description("The workflow name")),
			mcp.WithString("node_id", mcp.Required(), mcp.Description("The node ID")),
		),
		s.handleResolvePod,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"delete_workflow",
			mcp.WithDescription("Delete a workflow run"),
			mcp.WithString("name", mcp.Required(), mcp.Description("The workflow name")),
			mcp.WithDestructiveHintAnnotation(true),
		),
		s.handleDeleteWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"tail_logs",
			mcp.WithDescription("Return the last lines of a workflow's logs without following"),
			mcp.WithString("workflow", mcp.Required(), mcp.Description("The workflow name")),
			mcp.WithString("pod_name", mcp.Description("Pod to read; wins over node_id")),
			mcp.WithString("node_id", mcp.Description("Node whose pod to read")),
			mcp.WithString("container", mcp.Description("Container name, main by default")),
			mcp.WithNumber("tail_lines", mcp.Description("Number of lines, 100 by default")),
		),
		s.handleTailLogs,
	)
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := s.svc.List(ctx, services.ListOptions{
		Limit:  request.GetInt("limit", 0),
		Cursor: request.GetString("cursor", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}
	return jsonResult(page)
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil || name == "" {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}

	wf, err := s.svc.GetWorkflow(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get workflow: %v", err)), nil
	}
	return jsonResult(wf)
}

func (s *Server) handleResolvePod(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, err := request.RequireString("workflow")
	if err != nil || workflow == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow"), nil
	}
	nodeID, err := request.RequireString("node_id")
	if err != nil || nodeID == "" {
		return mcp.NewToolResultError("Missing required parameter: node_id"), nil
	}

	podName, err := s.svc.ResolvePodName(ctx, workflow, nodeID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve pod: %v", err)), nil
	}
	if podName == "" {
		return mcp.NewToolResultError(fmt.Sprintf("No pod found for node %s", nodeID)), nil
	}
	return jsonResult(map[string]string{"podName": podName})
}

func (s *Server) handleDeleteWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil || name == "" {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}

	if err := s.svc.DeleteWorkflow(ctx, name); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete workflow: %v", err)), nil
	}
	return mcp.NewToolResultText("Workflow " + name + " deleted"), nil
}

func (s *Server) handleTailLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, err := request.RequireString("workflow")
	if err != nil || workflow == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow"), nil
	}

	tail := request.GetInt("tail_lines", defaultTailLines)
	if tail < 1 {
		tail = defaultTailLines
	}
	opts := services.LogOptions{
		Follow:    false,
		PodName:   request.GetString("pod_name", ""),
		NodeID:    request.GetString("node_id", ""),
		Container: request.GetString("container", ""),
		TailLines: strconv.Itoa(tail),
	}

	sink := &bufferSink{limit: maxLogBytes}
	if err := s.svc.StreamLogs(ctx, workflow, sink, opts); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read logs: %v", err)), nil
	}
	if sink.status != 0 {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read logs: upstream returned status %d", sink.status)), nil
	}

	out := string(sink.buf)
	if sink.truncated {
		out += "\n[output truncated]"
	}
	return mcp.NewToolResultText(out), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

var errLogLimit = errors.New("log output limit reached")

// bufferSink collects a log stream up to limit bytes and then stops the
// relay by failing the write.
type bufferSink struct {
	limit     int
	buf       []byte
	status    int
	truncated bool
}

func (b *bufferSink) Open(string) error { return nil }

func (b *bufferSink) Reject(status int) error {
	b.status = status
	return nil
}

func (b *bufferSink) Write(p []byte) (int, error) {
	room := b.limit - len(b.buf)
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return room, errLogLimit
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// MountHTTPHandlers serves the MCP SSE transport under /mcp.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
