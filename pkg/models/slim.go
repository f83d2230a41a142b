package models

// SlimWorkflow is the reduced projection of a Workflow served to the
// dashboard. Labels, parameters and conditions are always present, even when
// empty.
type SlimWorkflow struct {
	APIVersion string     `json:"apiVersion"`
	Kind       string     `json:"kind"`
	Metadata   SlimMeta   `json:"metadata"`
	Spec       SlimSpec   `json:"spec"`
	Status     SlimStatus `json:"status"`
}

// SlimMeta is the metadata kept in a slim record.
type SlimMeta struct {
	Name         string            `json:"name"`
	GenerateName string            `json:"generateName,omitempty"`
	Labels       map[string]string `json:"labels"`
}

// SlimSpec is the spec kept in a slim record.
type SlimSpec struct {
	WorkflowTemplateRef *TemplateRef  `json:"workflowTemplateRef,omitempty"`
	Arguments           SlimArguments `json:"arguments"`
}

// SlimArguments always serializes its parameter list.
type SlimArguments struct {
	Parameters []Parameter `json:"parameters"`
}

// SlimStatus is the status kept in a slim record. Nodes is nil, and left out
// of the JSON, when node projection is disabled; when enabled it is always
// serialized, possibly as an empty object.
type SlimStatus struct {
	Phase      string              `json:"phase,omitempty"`
	StartedAt  string              `json:"startedAt,omitempty"`
	FinishedAt string              `json:"finishedAt,omitempty"`
	Message    string              `json:"message,omitempty"`
	Conditions []Condition         `json:"conditions"`
	Nodes      map[string]SlimNode `json:"nodes,omitzero"`
}

// SlimNode is the reduced projection of a Node.
type SlimNode struct {
	ID          string       `json:"id"`
	Type        string       `json:"type,omitempty"`
	DisplayName string       `json:"displayName,omitempty"`
	Phase       string       `json:"phase,omitempty"`
	StartedAt   string       `json:"startedAt,omitempty"`
	TemplateRef *TemplateRef `json:"templateRef,omitempty"`
	PodName     string       `json:"podName,omitempty"`
	Outputs     *Outputs     `json:"outputs,omitempty"`
}

// WorkflowPage is one page of slim workflows. NextCursor is nil on the last
// page.
type WorkflowPage struct {
	Items      []SlimWorkflow `json:"items"`
	NextCursor *string        `json:"nextCursor"`
}

// TemplateSummary describes a template a workflow can be submitted from.
type TemplateSummary struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters"`
}

// SubmitRequest asks for a new workflow run from a template.
type SubmitRequest struct {
	Template   string            `json:"template"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// SubmitResponse reports the name of the submitted workflow.
type SubmitResponse struct {
	Name string `json:"name"`
}
