package services

import (
	"context"

	"github.com/lukas-pastva/argo-workflows-ui/internal/argo"
	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// WorkflowClient is the upstream orchestration API as seen by the services.
type WorkflowClient interface {
	// ListWorkflows fetches one page of raw workflow records.
	ListWorkflows(ctx context.Context, limit int, cursor string) (*argo.WorkflowList, error)
	// GetWorkflow fetches a single workflow including its node map.
	GetWorkflow(ctx context.Context, name string) (*models.Workflow, error)
	// DeleteWorkflow deletes a workflow run.
	DeleteWorkflow(ctx context.Context, name string) error
	// OpenLogStream opens a workflow's log stream.
	OpenLogStream(ctx context.Context, name string, q argo.LogQuery) (*argo.LogStream, error)
	// ListWorkflowTemplates lists the templates runs can be created from.
	ListWorkflowTemplates(ctx context.Context) ([]models.WorkflowTemplate, error)
}

// Submitter creates a new workflow run from a template and returns its name.
type Submitter interface {
	Submit(ctx context.Context, req models.SubmitRequest) (string, error)
}
