// Package kube creates workflows directly through the Kubernetes API.
package kube

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"

	"github.com/lukas-pastva/argo-workflows-ui/internal/argo"
	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// WorkflowGVR identifies the Argo Workflow custom resource.
var WorkflowGVR = schema.GroupVersionResource{
	Group:    "argoproj.io",
	Version:  "v1alpha1",
	Resource: "workflows",
}

// Submitter creates Workflow resources that reference a WorkflowTemplate.
type Submitter struct {
	client    dynamic.Interface
	namespace string
}

// NewSubmitter creates a Submitter for namespace.
func NewSubmitter(client dynamic.Interface, namespace string) *Submitter {
	return &Submitter{client: client, namespace: namespace}
}

// NewDynamicClient builds a dynamic client. An empty apiURL means the
// in-cluster configuration; otherwise the token file and CA file are used
// as given.
func NewDynamicClient(apiURL, tokenFile, caFile string) (dynamic.Interface, error) {
	restCfg, err := buildRESTConfig(apiURL, tokenFile, caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to build REST config: %w", err)
	}

	client, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return client, nil
}

func buildRESTConfig(apiURL, tokenFile, caFile string) (*rest.Config, error) {
	if apiURL == "" {
		return rest.InClusterConfig()
	}

	restCfg := &rest.Config{
		Host:            apiURL,
		BearerTokenFile: tokenFile,
	}
	restCfg.TLSClientConfig.CAFile = caFile
	return restCfg, nil
}

// Submit creates a Workflow from req.Template and returns the name the API
// server generated for it.
func (s *Submitter) Submit(ctx context.Context, req models.SubmitRequest) (string, error) {
	obj := newWorkflowObject(s.namespace, req)

	created, err := s.client.Resource(WorkflowGVR).Namespace(s.namespace).Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		return "", toUpstreamError(err)
	}
	return created.GetName(), nil
}

func newWorkflowObject(namespace string, req models.SubmitRequest) *unstructured.Unstructured {
	spec := map[string]any{
		"workflowTemplateRef": map[string]any{"name": req.Template},
	}
	if params := parameterList(req.Parameters); len(params) > 0 {
		spec["arguments"] = map[string]any{"parameters": params}
	}

	obj := &unstructured.Unstructured{Object: map[string]any{"spec": spec}}
	obj.SetAPIVersion(WorkflowGVR.GroupVersion().String())
	obj.SetKind("Workflow")
	obj.SetNamespace(namespace)
	obj.SetGenerateName(strings.TrimSuffix(req.Template, "-") + "-")
	if len(req.Labels) > 0 {
		obj.SetLabels(req.Labels)
	}
	return obj
}

// parameterList renders parameters sorted by name.
func parameterList(params map[string]string) []any {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{"name": name, "value": params[name]})
	}
	return out
}

// toUpstreamError carries the API server's status so it is reported the same
// way as an Argo server failure.
func toUpstreamError(err error) error {
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		s := status.Status()
		return &argo.UpstreamError{Op: "create workflow", StatusCode: int(s.Code), Body: s.Message}
	}
	return fmt.Errorf("failed to create workflow: %w", err)
}
