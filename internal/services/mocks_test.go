package services

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/lukas-pastva/argo-workflows-ui/internal/argo"
	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// MockWorkflowClient satisfies WorkflowClient
type MockWorkflowClient struct {
	mock.Mock
}

func (m *MockWorkflowClient) ListWorkflows(ctx context.Context, limit int, cursor string) (*argo.WorkflowList, error) {
	args := m.Called(ctx, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*argo.WorkflowList), args.Error(1)
}

func (m *MockWorkflowClient) GetWorkflow(ctx context.Context, name string) (*models.Workflow, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowClient) DeleteWorkflow(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockWorkflowClient) OpenLogStream(ctx context.Context, name string, q argo.LogQuery) (*argo.LogStream, error) {
	args := m.Called(ctx, name, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*argo.LogStream), args.Error(1)
}

func (m *MockWorkflowClient) ListWorkflowTemplates(ctx context.Context) ([]models.WorkflowTemplate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WorkflowTemplate), args.Error(1)
}

// MockSubmitter satisfies Submitter
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, req models.SubmitRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// chunkedBody yields one chunk per Read, then EOF.
type chunkedBody struct {
	chunks [][]byte
	closed bool
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if len(b.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	b.chunks = b.chunks[1:]
	return n, nil
}

func (b *chunkedBody) Close() error {
	b.closed = true
	return nil
}

// blockingBody blocks in Read until closed, like an idle followed stream.
type blockingBody struct {
	once   sync.Once
	closed chan struct{}
}

func newBlockingBody() *blockingBody {
	return &blockingBody{closed: make(chan struct{})}
}

func (b *blockingBody) Read(p []byte) (int, error) {
	<-b.closed
	return 0, io.ErrClosedPipe
}

func (b *blockingBody) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

// recordingSink captures everything a relay delivers.
type recordingSink struct {
	contentType string
	opened      bool
	rejected    int
	chunks      []string
	failWrites  bool
}

func (s *recordingSink) Open(contentType string) error {
	s.opened = true
	s.contentType = contentType
	return nil
}

func (s *recordingSink) Reject(status int) error {
	s.rejected = status
	return nil
}

func (s *recordingSink) Write(p []byte) (int, error) {
	if s.failWrites {
		return 0, io.ErrClosedPipe
	}
	s.chunks = append(s.chunks, string(p))
	return len(p), nil
}
