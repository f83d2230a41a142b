package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

func TestSlim_DefaultsForMissingFields(t *testing.T) {
	var wf models.Workflow
	require.NoError(t, json.Unmarshal([]byte(`{"metadata":{"name":"bare"},"status":{}}`), &wf))

	slim := Slim(wf, true)

	data, err := json.Marshal(slim)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	metadata := doc["metadata"].(map[string]any)
	status := doc["status"].(map[string]any)
	spec := doc["spec"].(map[string]any)

	assert.Equal(t, map[string]any{}, metadata["labels"])
	assert.Equal(t, []any{}, status["conditions"])
	assert.Equal(t, map[string]any{}, status["nodes"])
	assert.Equal(t, []any{}, spec["arguments"].(map[string]any)["parameters"])
}

func TestSlim_OmitsNodesWhenDisabled(t *testing.T) {
	wf := models.Workflow{
		Status: models.WorkflowStatus{
			Nodes: map[string]models.Node{"n1": {ID: "n1", PodName: "p1"}},
		},
	}

	slim := Slim(wf, false)
	assert.Nil(t, slim.Status.Nodes)

	data, err := json.Marshal(slim)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"nodes"`)
}

func TestSlim_Projection(t *testing.T) {
	raw := `{
		"apiVersion": "argoproj.io/v1alpha1",
		"kind": "Workflow",
		"metadata": {
			"name": "build-abc",
			"generateName": "build-",
			"labels": {"team": "ci"},
			"annotations": {"dropped": "yes"},
			"uid": "dropped"
		},
		"spec": {
			"workflowTemplateRef": {"name": "build"},
			"arguments": {"parameters": [{"name": "repo", "value": "x", "description": "dropped"}]},
			"entrypoint": "dropped"
		},
		"status": {
			"phase": "Failed",
			"startedAt": "2024-01-01T00:00:00Z",
			"finishedAt": "2024-01-01T00:05:00Z",
			"message": "child failed",
			"conditions": [
				{"type": "PodRunning", "status": "False"},
				{"type": "Failed", "status": "True", "message": "boom"}
			],
			"nodes": {
				"build-abc-1": {
					"id": "build-abc-1",
					"name": "build-abc[0].compile",
					"type": "Pod",
					"displayName": "compile",
					"phase": "Failed",
					"startedAt": "2024-01-01T00:01:00Z",
					"templateRef": {"name": "build"},
					"podName": "build-abc-compile-1",
					"outputs": {"parameters": [{"name": "digest", "value": "sha", "valueFrom": {"path": "/tmp"}}], "artifacts": []},
					"resourcesDuration": {"cpu": 3}
				},
				"build-abc-2": {
					"id": "build-abc-2",
					"type": "Steps",
					"outputs": {"parameters": []}
				}
			}
		}
	}`
	var wf models.Workflow
	require.NoError(t, json.Unmarshal([]byte(raw), &wf))

	slim := Slim(wf, true)

	assert.Equal(t, "argoproj.io/v1alpha1", slim.APIVersion)
	assert.Equal(t, "Workflow", slim.Kind)
	assert.Equal(t, "build-abc", slim.Metadata.Name)
	assert.Equal(t, "build-", slim.Metadata.GenerateName)
	assert.Equal(t, map[string]string{"team": "ci"}, slim.Metadata.Labels)
	require.NotNil(t, slim.Spec.WorkflowTemplateRef)
	assert.Equal(t, "build", slim.Spec.WorkflowTemplateRef.Name)
	require.Len(t, slim.Spec.Arguments.Parameters, 1)
	assert.JSONEq(t, `"x"`, string(slim.Spec.Arguments.Parameters[0].Value))

	assert.Equal(t, "Failed", slim.Status.Phase)
	assert.Equal(t, "child failed", slim.Status.Message)
	require.Len(t, slim.Status.Conditions, 1)
	assert.Equal(t, "boom", slim.Status.Conditions[0].Message)

	compile := slim.Status.Nodes["build-abc-1"]
	assert.Equal(t, "compile", compile.DisplayName)
	assert.Equal(t, "build-abc-compile-1", compile.PodName)
	require.NotNil(t, compile.TemplateRef)
	require.NotNil(t, compile.Outputs)
	assert.Equal(t, "digest", compile.Outputs.Parameters[0].Name)

	steps := slim.Status.Nodes["build-abc-2"]
	assert.Nil(t, steps.Outputs, "empty outputs are dropped")
	assert.Nil(t, steps.TemplateRef)

	data, err := json.Marshal(slim)
	require.NoError(t, err)
	for _, dropped := range []string{"annotations", "uid", "entrypoint", "description", "valueFrom", "artifacts", "resourcesDuration", "PodRunning"} {
		assert.NotContains(t, string(data), dropped)
	}
}

func TestSlim_DoesNotAliasInput(t *testing.T) {
	wf := models.Workflow{Metadata: models.WorkflowMeta{Labels: map[string]string{"a": "1"}}}

	slim := Slim(wf, false)
	slim.Metadata.Labels["a"] = "changed"

	assert.Equal(t, "1", wf.Metadata.Labels["a"])
}

func slimWith(name, template, generateName, startedAt string) models.SlimWorkflow {
	wf := models.SlimWorkflow{
		Metadata: models.SlimMeta{Name: name, GenerateName: generateName},
		Status:   models.SlimStatus{StartedAt: startedAt},
	}
	if template != "" {
		wf.Spec.WorkflowTemplateRef = &models.TemplateRef{Name: template}
	}
	return wf
}

func names(items []models.SlimWorkflow) []string {
	out := make([]string, 0, len(items))
	for _, wf := range items {
		out = append(out, wf.Metadata.Name)
	}
	return out
}

func TestSortPage_GroupThenNewestFirst(t *testing.T) {
	items := []models.SlimWorkflow{
		slimWith("b-t1", "b", "", "2024-01-01T00:00:01Z"),
		slimWith("a-t3", "a", "", "2024-01-01T00:00:03Z"),
		slimWith("a-t2", "a", "", "2024-01-01T00:00:02Z"),
	}

	SortPage(items)

	assert.Equal(t, []string{"a-t3", "a-t2", "b-t1"}, names(items))
}

func TestSortPage_GroupKeyFallbacks(t *testing.T) {
	items := []models.SlimWorkflow{
		slimWith("gen", "", "zeta-", "2024-01-01T00:00:00Z"),
		slimWith("tpl", "alpha", "zzz-", "2024-01-01T00:00:00Z"),
		slimWith("none", "", "", "2024-01-01T00:00:00Z"),
	}

	SortPage(items)

	assert.Equal(t, []string{"none", "tpl", "gen"}, names(items))
	assert.Equal(t, "alpha", GroupKey(items[1]), "template ref wins over generateName")
}

func TestSortPage_MissingStartedAtIsEpoch(t *testing.T) {
	items := []models.SlimWorkflow{
		slimWith("pending", "a", "", ""),
		slimWith("garbage", "a", "", "not-a-time"),
		slimWith("running", "a", "", "2024-01-01T00:00:00Z"),
	}

	SortPage(items)

	assert.Equal(t, "running", items[0].Metadata.Name)
	assert.ElementsMatch(t, []string{"pending", "garbage"}, names(items[1:]))
}
