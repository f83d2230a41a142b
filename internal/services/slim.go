package services

import (
	"cmp"
	"slices"
	"time"

	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// Slim projects a workflow onto the fields the dashboard renders. Missing
// labels, parameters and conditions become empty collections. Nodes are
// projected only when includeNodes is set.
func Slim(wf models.Workflow, includeNodes bool) models.SlimWorkflow {
	labels := make(map[string]string, len(wf.Metadata.Labels))
	for k, v := range wf.Metadata.Labels {
		labels[k] = v
	}

	conditions := make([]models.Condition, 0)
	for _, c := range wf.Status.Conditions {
		if c.Type == models.ConditionFailed {
			conditions = append(conditions, c)
		}
	}

	slim := models.SlimWorkflow{
		APIVersion: wf.APIVersion,
		Kind:       wf.Kind,
		Metadata: models.SlimMeta{
			Name:         wf.Metadata.Name,
			GenerateName: wf.Metadata.GenerateName,
			Labels:       labels,
		},
		Spec: models.SlimSpec{
			WorkflowTemplateRef: copyTemplateRef(wf.Spec.WorkflowTemplateRef),
			Arguments: models.SlimArguments{
				Parameters: slimParameters(wf.Spec.Arguments.Parameters),
			},
		},
		Status: models.SlimStatus{
			Phase:      wf.Status.Phase,
			StartedAt:  wf.Status.StartedAt,
			FinishedAt: wf.Status.FinishedAt,
			Message:    wf.Status.Message,
			Conditions: conditions,
		},
	}

	if includeNodes {
		slim.Status.Nodes = make(map[string]models.SlimNode, len(wf.Status.Nodes))
		for key, node := range wf.Status.Nodes {
			slim.Status.Nodes[key] = slimNode(node)
		}
	}
	return slim
}

func slimNode(n models.Node) models.SlimNode {
	sn := models.SlimNode{
		ID:          n.ID,
		Type:        n.Type,
		DisplayName: n.DisplayName,
		Phase:       n.Phase,
		StartedAt:   n.StartedAt,
		TemplateRef: copyTemplateRef(n.TemplateRef),
		PodName:     n.PodName,
	}
	if n.Outputs != nil && len(n.Outputs.Parameters) > 0 {
		sn.Outputs = &models.Outputs{Parameters: slimParameters(n.Outputs.Parameters)}
	}
	return sn
}

func slimParameters(params []models.Parameter) []models.Parameter {
	out := make([]models.Parameter, 0, len(params))
	for _, p := range params {
		out = append(out, models.Parameter{Name: p.Name, Value: p.Value})
	}
	return out
}

func copyTemplateRef(ref *models.TemplateRef) *models.TemplateRef {
	if ref == nil || ref.Name == "" {
		return nil
	}
	return &models.TemplateRef{Name: ref.Name}
}

// GroupKey is the key workflows are grouped under: the originating template,
// else the generateName prefix, else "".
func GroupKey(wf models.SlimWorkflow) string {
	if wf.Spec.WorkflowTemplateRef != nil && wf.Spec.WorkflowTemplateRef.Name != "" {
		return wf.Spec.WorkflowTemplateRef.Name
	}
	return wf.Metadata.GenerateName
}

// SortPage orders a page in place by group key ascending, then by start time
// with the newest first. Unparseable or missing start times sort as the epoch.
func SortPage(items []models.SlimWorkflow) {
	slices.SortStableFunc(items, func(a, b models.SlimWorkflow) int {
		if c := cmp.Compare(GroupKey(a), GroupKey(b)); c != 0 {
			return c
		}
		return startedAt(b).Compare(startedAt(a))
	})
}

func startedAt(wf models.SlimWorkflow) time.Time {
	if wf.Status.StartedAt != "" {
		if t, err := time.Parse(time.RFC3339, wf.Status.StartedAt); err == nil {
			return t
		}
	}
	return time.Unix(0, 0).UTC()
}
