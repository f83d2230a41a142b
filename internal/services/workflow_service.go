package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lukas-pastva/argo-workflows-ui/internal/logging"
	"github.com/lukas-pastva/argo-workflows-ui/internal/observability"
	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// ErrInvalidRequest marks caller input the service refuses before contacting
// upstream.
var ErrInvalidRequest = errors.New("invalid request")

// Options are the read-only settings of a WorkflowService.
type Options struct {
	DefaultLimit     int
	IncludeNodes     bool
	DefaultContainer string
}

// ListOptions select one page of workflows. A zero Limit means the configured
// default; an empty Cursor means the first page.
type ListOptions struct {
	Limit  int
	Cursor string
}

// WorkflowService lists, inspects, deletes and submits workflows and relays
// their logs. It keeps no state between calls.
type WorkflowService struct {
	client    WorkflowClient
	submitter Submitter
	opts      Options
	logger    *logging.Logger
	metrics   *observability.Metrics
}

// NewWorkflowService creates a new WorkflowService. submitter may be nil when
// run creation is not offered; metrics may be nil.
func NewWorkflowService(client WorkflowClient, submitter Submitter, opts Options, logger *logging.Logger, metrics *observability.Metrics) *WorkflowService {
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = 1
	}
	if opts.DefaultContainer == "" {
		opts.DefaultContainer = "main"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WorkflowService{
		client:    client,
		submitter: submitter,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// List returns a single page of slim workflows. It never follows the cursor
// itself: callers wanting every workflow loop until NextCursor is nil.
func (s *WorkflowService) List(ctx context.Context, opts ListOptions) (*models.WorkflowPage, error) {
	limit := opts.Limit
	if limit < 1 {
		limit = s.opts.DefaultLimit
	}
	return s.FetchPage(ctx, limit, opts.Cursor)
}

// FetchPage retrieves one upstream page, slims every record and sorts the
// page by group key, newest first within a group.
func (s *WorkflowService) FetchPage(ctx context.Context, limit int, cursor string) (*models.WorkflowPage, error) {
	if limit < 1 {
		limit = 1
	}

	list, err := s.client.ListWorkflows(ctx, limit, cursor)
	if err != nil {
		s.metrics.PageFetched(ctx, 0, err)
		return nil, err
	}

	items := make([]models.SlimWorkflow, 0, len(list.Items))
	for _, wf := range list.Items {
		items = append(items, Slim(wf, s.opts.IncludeNodes))
	}
	SortPage(items)

	page := &models.WorkflowPage{Items: items}
	if list.NextCursor != "" {
		next := list.NextCursor
		page.NextCursor = &next
	}

	s.metrics.PageFetched(ctx, len(items), nil)
	s.logger.Debug("fetched workflow page", "items", len(items), "has_next", page.NextCursor != nil)
	return page, nil
}

// GetWorkflow returns the slim projection of one workflow, nodes included.
func (s *WorkflowService) GetWorkflow(ctx context.Context, name string) (*models.SlimWorkflow, error) {
	wf, err := s.client.GetWorkflow(ctx, name)
	if err != nil {
		return nil, err
	}
	slim := Slim(*wf, true)
	return &slim, nil
}

// DeleteWorkflow deletes a workflow run.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, name string) error {
	if err := s.client.DeleteWorkflow(ctx, name); err != nil {
		return err
	}
	s.logger.Info("deleted workflow", "workflow", name)
	return nil
}

// ListTemplates returns the workflow templates sorted by name.
func (s *WorkflowService) ListTemplates(ctx context.Context) ([]models.TemplateSummary, error) {
	templates, err := s.client.ListWorkflowTemplates(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.TemplateSummary, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, models.TemplateSummary{
			Name:       tpl.Metadata.Name,
			Parameters: slimParameters(tpl.Spec.Arguments.Parameters),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Submit starts a new run from a template.
func (s *WorkflowService) Submit(ctx context.Context, req models.SubmitRequest) (string, error) {
	if s.submitter == nil {
		return "", fmt.Errorf("%w: workflow submission is not configured", ErrInvalidRequest)
	}
	req.Template = strings.TrimSpace(req.Template)
	if req.Template == "" {
		return "", fmt.Errorf("%w: template is required", ErrInvalidRequest)
	}

	name, err := s.submitter.Submit(ctx, req)
	if err != nil {
		return "", err
	}
	s.logger.Info("submitted workflow", "template", req.Template, "workflow", name)
	return name, nil
}
