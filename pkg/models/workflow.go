// Package models defines the workflow records exchanged with the Argo server
// and the reduced projections served to the dashboard.
package models

import "encoding/json"

// Workflow phases reported by the orchestration engine.
const (
	PhasePending   = "Pending"
	PhaseRunning   = "Running"
	PhaseSucceeded = "Succeeded"
	PhaseFailed    = "Failed"
)

// ConditionFailed is the only condition type kept in slim records.
const ConditionFailed = "Failed"

// NodeTypePod marks a node backed by a pod.
const NodeTypePod = "Pod"

// Workflow is a full workflow record as returned by the Argo server. Only the
// fields the dashboard reads are declared; everything else is dropped while
// decoding.
type Workflow struct {
	APIVersion string         `json:"apiVersion,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Metadata   WorkflowMeta   `json:"metadata"`
	Spec       WorkflowSpec   `json:"spec"`
	Status     WorkflowStatus `json:"status"`
}

// WorkflowMeta is the subset of object metadata used by the dashboard.
type WorkflowMeta struct {
	Name         string            `json:"name,omitempty"`
	Namespace    string            `json:"namespace,omitempty"`
	GenerateName string            `json:"generateName,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
}

// TemplateRef names a workflow template.
type TemplateRef struct {
	Name string `json:"name"`
}

// Parameter is a named argument or output. Value is kept as raw JSON so that
// whatever the engine sends is relayed unchanged.
type Parameter struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Arguments holds the input parameters of a workflow.
type Arguments struct {
	Parameters []Parameter `json:"parameters,omitempty"`
}

// WorkflowSpec is the subset of the workflow spec used by the dashboard.
type WorkflowSpec struct {
	WorkflowTemplateRef *TemplateRef `json:"workflowTemplateRef,omitempty"`
	Arguments           Arguments    `json:"arguments"`
}

// Condition is a workflow status condition.
type Condition struct {
	Type    string `json:"type"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// WorkflowStatus is the observed state of a workflow.
type WorkflowStatus struct {
	Phase      string          `json:"phase,omitempty"`
	StartedAt  string          `json:"startedAt,omitempty"`
	FinishedAt string          `json:"finishedAt,omitempty"`
	Message    string          `json:"message,omitempty"`
	Conditions []Condition     `json:"conditions,omitempty"`
	Nodes      map[string]Node `json:"nodes,omitempty"`
}

// Outputs holds the output parameters of a node.
type Outputs struct {
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Node is one step of a workflow's execution graph.
type Node struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Type        string       `json:"type,omitempty"`
	DisplayName string       `json:"displayName,omitempty"`
	Phase       string       `json:"phase,omitempty"`
	StartedAt   string       `json:"startedAt,omitempty"`
	TemplateRef *TemplateRef `json:"templateRef,omitempty"`
	PodName     string       `json:"podName,omitempty"`
	Outputs     *Outputs     `json:"outputs,omitempty"`
}

// WorkflowTemplate is a reusable workflow definition.
type WorkflowTemplate struct {
	Metadata WorkflowMeta `json:"metadata"`
	Spec     struct {
		Arguments Arguments `json:"arguments"`
	} `json:"spec"`
}
