package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BearBump/ParcelDesk/internal/broker/kafka"
	"github.com/BearBump/ParcelDesk/internal/broker/messages"
	"github.com/BearBump/ParcelDesk/internal/logger"
)

func newWatchCmd(a *app) *cobra.Command {
	var fromStart bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the package.updated feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			consumer := a.factories.newConsumer(a.cfg, fromStart)
			defer func() { _ = consumer.Close() }()

			logger.Get().Info("watching feed",
				zap.String("topic", a.cfg.Kafka.PackageUpdatedTopicName),
				zap.String("group", a.cfg.Kafka.ConsumerGroup))

			err := watchFeed(ctx, consumer, cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "replay the retained feed before following it")
	return cmd
}

// watchFeed prints every event until the consumer stops. Undecodable messages are logged and skipped.
func watchFeed(ctx context.Context, consumer feedConsumer, w io.Writer) error {
	return consumer.Consume(ctx, func(_ context.Context, rec kafka.Record) error {
		var m messages.PackageUpdated
		if err := json.Unmarshal(rec.Value, &m); err != nil {
			logger.Get().Warn("skip undecodable message",
				zap.ByteString("key", rec.Key), zap.Int64("offset", rec.Offset), zap.Error(err))
			return nil
		}
		_, err := fmt.Fprintln(w, formatEvent(m))
		return err
	})
}

func formatEvent(m messages.PackageUpdated) string {
	at := m.UpdatedAt.Local().Format(time.DateTime)
	if m.Deleted {
		return fmt.Sprintf("%s  %-24s removed", at, m.TrackingNumber)
	}
	line := fmt.Sprintf("%s  %-24s %-11s (%s)", at, m.TrackingNumber, m.StatusName, m.Source)
	if m.Title != "" {
		line += "  " + m.Title
	}
	return line
}
