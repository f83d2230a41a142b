// Package app wires configuration into the workflow pipeline shared by the
// server and the CLI tools.
package app

import (
	"fmt"

	"github.com/lukas-pastva/argo-workflows-ui/internal/argo"
	"github.com/lukas-pastva/argo-workflows-ui/internal/auth"
	"github.com/lukas-pastva/argo-workflows-ui/internal/config"
	"github.com/lukas-pastva/argo-workflows-ui/internal/kube"
	"github.com/lukas-pastva/argo-workflows-ui/internal/logging"
	"github.com/lukas-pastva/argo-workflows-ui/internal/observability"
	"github.com/lukas-pastva/argo-workflows-ui/internal/services"
)

// NewArgoClient resolves the upstream credential and builds the Argo client.
func NewArgoClient(cfg *config.Config, logger *logging.Logger) (*argo.Client, error) {
	cred, err := auth.New(cfg.Argo.Token, cfg.Argo.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upstream credential: %w", err)
	}
	logger.Info("Upstream credential resolved", "source", cred.Source)

	httpClient, err := argo.NewHTTPClient(argo.TransportOptions{
		CAFile:                cfg.Argo.CAFile,
		InsecureSkipVerify:    cfg.Argo.InsecureSkipVerify,
		ResponseHeaderTimeout: cfg.Argo.Timeout,
	}, cred)
	if err != nil {
		return nil, err
	}
	return argo.NewClient(cfg.Argo.BaseURL, cfg.Argo.Namespace, httpClient, cfg.Argo.Timeout), nil
}

// NewSubmitter returns the configured way of creating runs.
func NewSubmitter(cfg *config.Config, client *argo.Client) (services.Submitter, error) {
	if cfg.Submit.Mode != config.SubmitModeKubernetes {
		return client, nil
	}
	dyn, err := kube.NewDynamicClient(cfg.Submit.KubeAPIURL, cfg.Submit.KubeTokenFile, cfg.Submit.KubeCAFile)
	if err != nil {
		return nil, err
	}
	return kube.NewSubmitter(dyn, cfg.Argo.Namespace), nil
}

// NewWorkflowService builds the full pipeline from cfg.
func NewWorkflowService(cfg *config.Config, logger *logging.Logger) (*services.WorkflowService, error) {
	client, err := NewArgoClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	submitter, err := NewSubmitter(cfg, client)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return services.NewWorkflowService(client, submitter, services.Options{
		DefaultLimit:     cfg.List.DefaultLimit,
		IncludeNodes:     cfg.List.IncludeNodes,
		DefaultContainer: cfg.Logs.DefaultContainer,
	}, logger, metrics), nil
}
