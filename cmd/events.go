package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dt-demo-gcp/authserver/config"
	"github.com/dt-demo-gcp/authserver/internal/mq"
	"github.com/dt-demo-gcp/authserver/types"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect published auth events",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Subscribe to the events channel and log every event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.NewBackend(ctx, cfg.Events)
		if err != nil {
			return fmt.Errorf("failed to init events backend: %w", err)
		}
		if backend == nil {
			return errors.New("EVENTS_BACKEND is not set")
		}

		publisher := mq.NewEventPublisher(backend, cfg.Events.Channel, logger)
		defer publisher.Close()

		logger.Info("watching auth events", "backend", cfg.Events.Backend, "channel", cfg.Events.Channel)
		err = publisher.Watch(ctx, func(event types.AuthEvent) {
			logger.Info("auth event",
				"type", event.Type,
				"username", event.Username,
				"subject", event.Subject,
				"code", event.Code,
				"request_id", event.RequestID,
				"remote_addr", event.RemoteAddr,
				"occurred_at", event.OccurredAt,
			)
		})
		if err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
