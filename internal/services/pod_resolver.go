package services

import (
	"context"
	"sort"
	"strings"

	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// Resolution strategies, in the order they are tried.
const (
	strategyDirect   = "direct"
	strategyScan     = "scan"
	strategyTemplate = "template"
	strategySuffix   = "suffix"
	strategyNone     = "none"
)

// ResolvePodName finds the pod backing nodeID in workflowName. It returns ""
// when no strategy succeeds; the only error is a failed workflow fetch.
//
// Node IDs and pod names are assumed to share a trailing ordinal after their
// last hyphen. The template strategy builds a pod name from that ordinal
// without checking the pod exists, so a subsequent log call may still 404.
func (s *WorkflowService) ResolvePodName(ctx context.Context, workflowName, nodeID string) (string, error) {
	wf, err := s.client.GetWorkflow(ctx, workflowName)
	if err != nil {
		return "", err
	}

	podName, strategy := resolvePodName(wf.Status.Nodes, workflowName, nodeID)
	s.metrics.PodResolved(ctx, strategy)
	s.logger.Debug("resolved pod name",
		"workflow", workflowName,
		"node_id", nodeID,
		"pod", podName,
		"strategy", strategy,
	)
	return podName, nil
}

func resolvePodName(nodes map[string]models.Node, workflowName, nodeID string) (string, string) {
	node, keyed := nodes[nodeID]
	if keyed && node.PodName != "" {
		return node.PodName, strategyDirect
	}

	keys := sortedNodeKeys(nodes)

	// node maps are not always keyed by node.id
	for _, k := range keys {
		if n := nodes[k]; n.ID == nodeID && n.PodName != "" {
			return n.PodName, strategyScan
		}
	}

	suffix := nodeSuffix(nodeID)

	if keyed && node.TemplateRef != nil && node.TemplateRef.Name != "" {
		return workflowName + "-" + node.TemplateRef.Name + "-" + suffix, strategyTemplate
	}

	if suffix != "" {
		for _, k := range keys {
			if pod := nodes[k].PodName; pod != "" && strings.HasSuffix(pod, suffix) {
				return pod, strategySuffix
			}
		}
	}

	return "", strategyNone
}

// nodeSuffix returns what follows the last hyphen of nodeID, or all of nodeID
// when it has none.
func nodeSuffix(nodeID string) string {
	return nodeID[strings.LastIndex(nodeID, "-")+1:]
}

func sortedNodeKeys(nodes map[string]models.Node) []string {
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
