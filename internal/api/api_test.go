package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukas-pastva/argo-workflows-ui/internal/argo"
	"github.com/lukas-pastva/argo-workflows-ui/internal/logging"
	"github.com/lukas-pastva/argo-workflows-ui/internal/services"
	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// newTestAPI wires the real pipeline against a fake Argo server.
func newTestAPI(t *testing.T, upstream http.Handler) *httptest.Server {
	t.Helper()

	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	client := argo.NewClient(up.URL, "argo", up.Client(), 5*time.Second)
	svc := services.NewWorkflowService(client, client, services.Options{DefaultLimit: 50}, nil, nil)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logging.NewNop())
	s := NewServer(svc, nil, "test")
	e.GET("/healthz", s.HandleHealth)
	RegisterHandlers(e.Group("/api"), s)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func readProblem(t *testing.T, resp *http.Response) ProblemDetails {
	t.Helper()
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	var p ProblemDetails
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	return p
}

func workflowJSON(name, template, startedAt string) string {
	return fmt.Sprintf(`{"metadata":{"name":%q,"namespace":"argo","uid":"x"},
		"spec":{"workflowTemplateRef":{"name":%q},"templates":[{"name":"big"}]},
		"status":{"phase":"Running","startedAt":%q,"nodes":{"n":{"id":"n"}}}}`, name, template, startedAt)
}

func TestHealth(t *testing.T) {
	srv := newTestAPI(t, http.NewServeMux())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestListWorkflows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflows/argo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("listOptions.limit"))
		assert.Equal(t, "page-1", r.URL.Query().Get("listOptions.continue"))
		fmt.Fprintf(w, `{"items":[%s,%s],"metadata":{"continue":"page-2"}}`,
			workflowJSON("b-1", "b", "2024-01-01T00:00:00Z"),
			workflowJSON("a-1", "a", "2024-01-01T00:00:00Z"))
	})
	srv := newTestAPI(t, mux)

	resp, err := http.Get(srv.URL + "/api/workflows?limit=2&cursor=page-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `"page-2"`, string(raw["nextCursor"]))

	var items []map[string]any
	require.NoError(t, json.Unmarshal(raw["items"], &items))
	require.Len(t, items, 2)
	assert.Equal(t, "a-1", items[0]["metadata"].(map[string]any)["name"])
	status := items[0]["status"].(map[string]any)
	assert.NotContains(t, status, "nodes", "nodes are dropped from list pages")
	assert.NotContains(t, items[0]["spec"], "templates")
}

func TestListWorkflows_LastPageHasNullCursor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflows/argo", func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("listOptions.continue"))
		_, _ = io.WriteString(w, `{"items":null,"metadata":{}}`)
	})
	srv := newTestAPI(t, mux)

	resp, err := http.Get(srv.URL + "/api/workflows")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"items":[],"nextCursor":null}`, string(body))
}

func TestListWorkflows_InvalidLimit(t *testing.T) {
	srv := newTestAPI(t, http.NewServeMux())

	resp, err := http.Get(srv.URL + "/api/workflows?limit=ten")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	p := readProblem(t, resp)
	assert.Contains(t, p.Detail, "limit")
}

func TestListWorkflows_UpstreamStatusPassesThrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflows/argo", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"forbidden"}`, http.StatusForbidden)
	})
	srv := newTestAPI(t, mux)

	resp, err := http.Get(srv.URL + "/api/workflows")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	p := readProblem(t, resp)
	assert.Equal(t, http.StatusForbidden, p.Status)
	assert.Equal(t, "/api/workflows", p.Instance)
}

func TestGetWorkflow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflows/argo/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") != "wf-1" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, workflowJSON("wf-1", "t", "2024-01-01T00:00:00Z"))
	})
	srv := newTestAPI(t, mux)

	resp, err := http.Get(srv.URL + "/api/workflows/wf-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var wf models.SlimWorkflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wf))
	assert.Equal(t, "wf-1", wf.Metadata.Name)
	assert.Contains(t, wf.Status.Nodes, "n")

	missing, err := http.Get(srv.URL + "/api/workflows/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestDeleteWorkflow(t *testing.T) {
	deleted := ""
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v1/workflows/argo/{name}", func(w http.ResponseWriter, r *http.Request) {
		deleted = r.PathValue("name")
		_, _ = io.WriteString(w, `{}`)
	})
	srv := newTestAPI(t, mux)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/workflows/wf-1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"deleted":true}`, string(body))
	assert.Equal(t, "wf-1", deleted)
}

func TestSubmitWorkflow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/workflows/argo/submit", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "build", body["resourceName"])
		_, _ = io.WriteString(w, `{"metadata":{"name":"build-x7k2p"}}`)
	})
	srv := newTestAPI(t, mux)

	resp, err := http.Post(srv.URL+"/api/workflows", "application/json", strings.NewReader(`{"template":"build","parameters":{"a":"1"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"name":"build-x7k2p"}`, string(body))

	bad, err := http.Post(srv.URL+"/api/workflows", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestListTemplates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflow-templates/argo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"items":[
			{"metadata":{"name":"zeta"}},
			{"metadata":{"name":"alpha"},"spec":{"arguments":{"parameters":[{"name":"p","value":"1"}]}}}]}`)
	})
	srv := newTestAPI(t, mux)

	resp, err := http.Get(srv.URL + "/api/templates")
	require.NoError(t, err)
	defer resp.Body.Close()

	var templates []models.TemplateSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&templates))
	require.Len(t, templates, 2)
	assert.Equal(t, "alpha", templates[0].Name)
	assert.Equal(t, "p", templates[0].Parameters[0].Name)
}

func nodeUpstream() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflows/argo/{name}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"metadata":{"name":"wf"},"status":{"nodes":{
			"wf-build-5":{"id":"wf-build-5","templateRef":{"name":"build"}},
			"n1":{"id":"n1","podName":"wf-step-1"}}}}`)
	})
	return mux
}

func TestResolvePod(t *testing.T) {
	srv := newTestAPI(t, nodeUpstream())

	resp, err := http.Get(srv.URL + "/api/workflows/wf-build/nodes/wf-build-5/pod")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"podName":"wf-build-build-5"}`, string(body))

	short, err := http.Get(srv.URL + "/api/workflows/wf/nodes/wf-build-5/pod")
	require.NoError(t, err)
	defer short.Body.Close()
	body, _ = io.ReadAll(short.Body)
	assert.JSONEq(t, `{"podName":"wf-build-5"}`, string(body))

	missing, err := http.Get(srv.URL + "/api/workflows/wf/nodes/other-9/pod")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func logUpstream(t *testing.T, podName *string) *http.ServeMux {
	mux := nodeUpstream()
	mux.HandleFunc("GET /api/v1/workflows/argo/{name}/log", func(w http.ResponseWriter, r *http.Request) {
		if podName != nil {
			*podName = r.URL.Query().Get("podName")
		}
		assert.Equal(t, "main", r.URL.Query().Get("logOptions.container"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		for _, line := range []string{`{"result":{"content":"one"}}` + "\n", `{"result":{"content":"two"}}` + "\n"} {
			_, _ = io.WriteString(w, line)
			w.(http.Flusher).Flush()
		}
	})
	return mux
}

func TestStreamWorkflowLogs(t *testing.T) {
	var podName string
	srv := newTestAPI(t, logUpstream(t, &podName))

	resp, err := http.Get(srv.URL + "/api/workflows/wf/logs?nodeId=n1&follow=false")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"result":{"content":"one"}}`+"\n"+`{"result":{"content":"two"}}`+"\n", string(body))
	assert.Equal(t, "wf-step-1", podName)
}

func TestStreamWorkflowLogs_PodNameKeepsDefaultContainer(t *testing.T) {
	var podName string
	srv := newTestAPI(t, logUpstream(t, &podName))

	resp, err := http.Get(srv.URL + "/api/workflows/wf/logs?podName=wf-main-1&follow=false")
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "wf-main-1", podName)
}

func TestStreamWorkflowLogs_UpstreamRejects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflows/argo/{name}/log", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	})
	srv := newTestAPI(t, mux)

	resp, err := http.Get(srv.URL + "/api/workflows/wf/logs")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, body)
}

func TestStreamWorkflowLogs_UnresolvableNode(t *testing.T) {
	srv := newTestAPI(t, nodeUpstream())

	resp, err := http.Get(srv.URL + "/api/workflows/wf/logs?nodeId=ghost-3")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	readProblem(t, resp)
}

func dialLogs(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	target := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/workflows/wf/logs/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntilClose collects binary frames until the server closes the socket.
func readUntilClose(t *testing.T, conn *websocket.Conn) (string, int) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got strings.Builder
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			return got.String(), closeErr.Code
		}
		assert.Equal(t, websocket.BinaryMessage, kind)
		got.Write(data)
	}
}

func TestStreamWorkflowLogsWS(t *testing.T) {
	srv := newTestAPI(t, logUpstream(t, nil))

	conn := dialLogs(t, srv, "?follow=false")
	data, code := readUntilClose(t, conn)

	assert.Equal(t, `{"result":{"content":"one"}}`+"\n"+`{"result":{"content":"two"}}`+"\n", data)
	assert.Equal(t, websocket.CloseNormalClosure, code)
}

func TestStreamWorkflowLogsWS_Errors(t *testing.T) {
	srv := newTestAPI(t, nodeUpstream())

	_, code := readUntilClose(t, dialLogs(t, srv, "?nodeId=ghost-3"))
	assert.Equal(t, 4400, code)

	// no log route upstream, so the mux answers 404
	_, code = readUntilClose(t, dialLogs(t, srv, ""))
	assert.Equal(t, 4404, code)
}

func TestStreamWorkflowLogsWS_MultibyteErrorKeepsCloseCode(t *testing.T) {
	srv := newTestAPI(t, nodeUpstream())

	nodeID := url.QueryEscape(strings.Repeat("é", 60) + "-3")
	_, code := readUntilClose(t, dialLogs(t, srv, "?nodeId="+nodeID))
	assert.Equal(t, 4400, code)
}

func TestTruncateReason(t *testing.T) {
	assert.Equal(t, "short", truncateReason("short", wsMaxCloseReason))
	assert.Equal(t, "abc", truncateReason("abcdef", 3))

	// "é" is two bytes; a cut at byte 3 would split the second one
	got := truncateReason("éé", 3)
	assert.Equal(t, "é", got)
	assert.True(t, utf8.ValidString(got))

	long := truncateReason("node "+strings.Repeat("é", 100), wsMaxCloseReason)
	assert.LessOrEqual(t, len(long), wsMaxCloseReason)
	assert.True(t, utf8.ValidString(long))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(services.ErrInvalidRequest))
	assert.Equal(t, http.StatusBadGateway, statusFor(&argo.UpstreamError{StatusCode: http.StatusBadGateway}))
	assert.Equal(t, http.StatusTeapot, statusFor(echo.NewHTTPError(http.StatusTeapot)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(argo.ErrDecode))
}

func TestSpecHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	req.Host = "dash.example"
	rec := httptest.NewRecorder()

	SpecHandler()(rec, req)

	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "url: \"http://dash.example\"")
	assert.Contains(t, rec.Body.String(), "/api/workflows/{name}/logs:")
}
