package cli

import (
	"context"

	"github.com/spf13/cobra"

	"quiz-guard-service/internal/config"
	"quiz-guard-service/internal/logging"
)

// NewFlushCmd redelivers parked submissions once and exits.
func NewFlushCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Redeliver submissions parked in the outbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlush(cmd.Context(), *configPath)
		},
	}
}

func runFlush(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	d, err := newDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close()

	delivered, err := d.flusher(cfg, log).Flush(ctx)
	if err != nil {
		return err
	}
	log.WithField("delivered", delivered).Info("outbox flushed")
	return nil
}
