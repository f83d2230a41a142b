// Package argo is a small client for the Argo Workflows server REST API.
package argo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 4 << 10

// Client talks to one namespace of an Argo server.
type Client struct {
	baseURL    string
	namespace  string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a Client. timeout bounds every call except log streams;
// zero disables it.
func NewClient(baseURL, namespace string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		namespace:  namespace,
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// Namespace returns the namespace every call is scoped to.
func (c *Client) Namespace() string {
	return c.namespace
}

// WorkflowList is one decoded page of the workflow list endpoint.
// NextCursor is empty on the last page.
type WorkflowList struct {
	Items      []models.Workflow
	NextCursor string
}

// listEnvelope accepts every continuation-token field name the server has
// used across versions.
type listEnvelope struct {
	Items    json.RawMessage `json:"items"`
	Metadata struct {
		Continue string `json:"continue"`
	} `json:"metadata"`
	ContinueToken string `json:"continueToken"`
	Continue      string `json:"continue"`
}

func (e *listEnvelope) nextCursor() string {
	for _, candidate := range []string{e.Metadata.Continue, e.ContinueToken, e.Continue} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// ListWorkflows fetches one page of workflows. An empty cursor requests the
// first page and omits the continuation parameter; otherwise the cursor is
// sent unchanged.
func (c *Client) ListWorkflows(ctx context.Context, limit int, cursor string) (*WorkflowList, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := url.Values{}
	query.Set("listOptions.fieldSelector", "")
	query.Set("listOptions.limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("listOptions.continue", cursor)
	}

	resp, err := c.do(ctx, "list workflows", http.MethodGet, c.workflowsPath(), query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope listEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: list workflows: %v", ErrDecode, err)
	}

	list := &WorkflowList{NextCursor: envelope.nextCursor()}
	if raw := bytes.TrimSpace(envelope.Items); len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &list.Items); err != nil {
			return nil, fmt.Errorf("%w: list workflows items: %v", ErrDecode, err)
		}
	}
	return list, nil
}

// GetWorkflow fetches a single workflow with its full node map.
func (c *Client) GetWorkflow(ctx context.Context, name string) (*models.Workflow, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, "get workflow", http.MethodGet, c.workflowPath(name), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wf models.Workflow
	if err := json.NewDecoder(resp.Body).Decode(&wf); err != nil {
		return nil, fmt.Errorf("%w: get workflow: %v", ErrDecode, err)
	}
	return &wf, nil
}

// DeleteWorkflow deletes a workflow run.
func (c *Client) DeleteWorkflow(ctx context.Context, name string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, "delete workflow", http.MethodDelete, c.workflowPath(name), nil, nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// LogQuery selects the log stream of a workflow. The string filters are sent
// verbatim when non-empty.
type LogQuery struct {
	PodName      string
	Container    string
	Follow       bool
	SinceTime    string
	SinceSeconds string
	TailLines    string
	Timestamps   string
	Previous     string
}

func (q LogQuery) values() url.Values {
	v := url.Values{}
	v.Set("logOptions.follow", strconv.FormatBool(q.Follow))
	if q.Container != "" {
		v.Set("logOptions.container", q.Container)
	}
	if q.PodName != "" {
		v.Set("podName", q.PodName)
	}
	optional := []struct{ key, value string }{
		{"logOptions.sinceTime", q.SinceTime},
		{"logOptions.sinceSeconds", q.SinceSeconds},
		{"logOptions.tailLines", q.TailLines},
		{"logOptions.timestamps", q.Timestamps},
		{"logOptions.previous", q.Previous},
	}
	for _, o := range optional {
		if o.value != "" {
			v.Set(o.key, o.value)
		}
	}
	return v
}

// LogStream is an open upstream log response. The caller must close Body.
type LogStream struct {
	ContentType string
	Body        io.ReadCloser
}

// OpenLogStream opens the workflow log endpoint. The stream lives as long as
// ctx; cancelling ctx tears down the upstream connection.
func (c *Client) OpenLogStream(ctx context.Context, name string, q LogQuery) (*LogStream, error) {
	resp, err := c.do(ctx, "open log stream", http.MethodGet, c.workflowPath(name)+"/log", q.values(), nil)
	if err != nil {
		return nil, err
	}
	return &LogStream{ContentType: resp.Header.Get("Content-Type"), Body: resp.Body}, nil
}

// ListWorkflowTemplates returns the templates of the namespace.
func (c *Client) ListWorkflowTemplates(ctx context.Context) ([]models.WorkflowTemplate, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	path := "/api/v1/workflow-templates/" + url.PathEscape(c.namespace)
	resp, err := c.do(ctx, "list workflow templates", http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Items []models.WorkflowTemplate `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: list workflow templates: %v", ErrDecode, err)
	}
	return envelope.Items, nil
}

type submitBody struct {
	Namespace     string        `json:"namespace"`
	ResourceKind  string        `json:"resourceKind"`
	ResourceName  string        `json:"resourceName"`
	SubmitOptions submitOptions `json:"submitOptions"`
}

type submitOptions struct {
	Parameters []string `json:"parameters,omitempty"`
	Labels     string   `json:"labels,omitempty"`
}

// Submit starts a workflow from a workflow template through the server's
// submit endpoint and returns the generated workflow name.
func (c *Client) Submit(ctx context.Context, req models.SubmitRequest) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body := submitBody{
		Namespace:    c.namespace,
		ResourceKind: "WorkflowTemplate",
		ResourceName: req.Template,
		SubmitOptions: submitOptions{
			Parameters: joinPairs(req.Parameters, "="),
			Labels:     strings.Join(joinPairs(req.Labels, "="), ","),
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal submit request: %w", err)
	}

	resp, err := c.do(ctx, "submit workflow", http.MethodPost, c.workflowsPath()+"/submit", nil, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var wf models.Workflow
	if err := json.NewDecoder(resp.Body).Decode(&wf); err != nil {
		return "", fmt.Errorf("%w: submit workflow: %v", ErrDecode, err)
	}
	return wf.Metadata.Name, nil
}

// joinPairs renders a map as sorted key<sep>value strings.
func joinPairs(m map[string]string, sep string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+sep+m[k])
	}
	return out
}

func (c *Client) workflowsPath() string {
	return "/api/v1/workflows/" + url.PathEscape(c.namespace)
}

func (c *Client) workflowPath(name string) string {
	return c.workflowsPath() + "/" + url.PathEscape(name)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// do sends the request and returns the response only for 2xx statuses. Any
// other status is drained into an UpstreamError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}
