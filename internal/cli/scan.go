package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aosc-dev/pvrepo/internal/events"
	"github.com/aosc-dev/pvrepo/internal/orchestrate"
	"github.com/aosc-dev/pvrepo/internal/reconcile"
	"github.com/aosc-dev/pvrepo/internal/release"
	"github.com/aosc-dev/pvrepo/internal/scanner"
	"github.com/aosc-dev/pvrepo/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Reconcile the database against the live pool directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(cmd.Context(), func(o *orchestrate.Orchestrator) error {
			_, err := o.Scan(cmd.Context())
			return err
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Generate and atomically publish the Packages/Contents/Release tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(cmd.Context(), func(o *orchestrate.Orchestrator) error {
			return o.Publish(cmd.Context())
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan then publish in one step",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(cmd.Context(), func(o *orchestrate.Orchestrator) error {
			return o.Run(cmd.Context())
		})
	},
}

func withOrchestrator(ctx context.Context, fn func(*orchestrate.Orchestrator) error) error {
	cleanup, err := initLogging()
	if err != nil {
		return err
	}
	defer cleanup()
	logger := zap.S()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	sc, err := scanner.New()
	if err != nil {
		return err
	}

	pub := events.NewLogPublisher(logger)
	rec := reconcile.New(st, sc, pub, logger)
	gen := release.New(st, logger)

	o := orchestrate.New(cfg.Base, cfg, st, rec, gen, logger)
	return fn(o)
}
