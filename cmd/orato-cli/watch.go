package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"orato/internal/bootstrap"
	"orato/internal/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch <audio-id>",
	Short: "Watch processing status for an already-uploaded recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	sink := newConsoleSink()
	services, err := bootstrap.Build(sink)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	outcomes := make(chan domain.Outcome, 1)
	handle := services.Watcher.Watch(ctx, args[0], func(outcome domain.Outcome) {
		outcomes <- outcome
	})
	defer handle.Close()

	select {
	case outcome := <-outcomes:
		return reportOutcome(outcome)
	case <-ctx.Done():
		return ctx.Err()
	}
}
