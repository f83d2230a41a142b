// Command walk pages through every workflow by following the list cursor and
// prints one slim workflow per line as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/lukas-pastva/argo-workflows-ui/internal/app"
	"github.com/lukas-pastva/argo-workflows-ui/internal/config"
	"github.com/lukas-pastva/argo-workflows-ui/internal/logging"
	"github.com/lukas-pastva/argo-workflows-ui/internal/services"
	"github.com/lukas-pastva/argo-workflows-ui/pkg/models"
)

// Lister returns one page of workflows.
type Lister interface {
	List(ctx context.Context, opts services.ListOptions) (*models.WorkflowPage, error)
}

func main() {
	var (
		configFile string
		limit      int
		maxPages   int
	)

	root := &cobra.Command{
		Use:           "walk",
		Short:         "Print every workflow as JSON lines",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging.Level, "console", os.Stderr)

			svc, err := app.NewWorkflowService(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			pages, items, err := walk(ctx, svc, limit, maxPages, cmd.OutOrStdout())
			logger.Info("walk finished", "pages", pages, "items", items)
			return err
		},
	}
	root.Flags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml")
	root.Flags().IntVar(&limit, "limit", 0, "Page size (default from config)")
	root.Flags().IntVar(&maxPages, "max-pages", 0, "Stop after this many pages (0 means all)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// walk follows the cursor until the last page or maxPages and writes each
// item to w.
func walk(ctx context.Context, lister Lister, limit, maxPages int, w io.Writer) (pages, items int, err error) {
	enc := json.NewEncoder(w)
	cursor := ""
	for {
		page, err := lister.List(ctx, services.ListOptions{Limit: limit, Cursor: cursor})
		if err != nil {
			return pages, items, fmt.Errorf("page %d: %w", pages+1, err)
		}
		pages++

		for _, item := range page.Items {
			if err := enc.Encode(item); err != nil {
				return pages, items, err
			}
			items++
		}

		if page.NextCursor == nil || (maxPages > 0 && pages >= maxPages) {
			return pages, items, nil
		}
		cursor = *page.NextCursor
	}
}
