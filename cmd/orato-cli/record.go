package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"orato/internal/bootstrap"
	"orato/internal/domain"
)

var recordSeconds int

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a take, upload it, and wait for AI feedback",
	Long: "Runs the full pipeline: countdown, capture, upload, processing watch.\n" +
		"Recording stops after --seconds, or on Enter when --seconds is 0.",
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().IntVar(&recordSeconds, "seconds", 0, "stop recording after this many seconds (0 = stop on Enter)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	sink := newConsoleSink()
	services, err := bootstrap.Build(sink)
	if err != nil {
		return err
	}
	controller := services.Controller
	defer controller.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := controller.Start(ctx); err != nil {
		return err
	}

	stop := make(chan struct{})
	go func() {
		defer close(stop)
		if recordSeconds > 0 {
			select {
			case <-time.After(time.Duration(recordSeconds) * time.Second):
			case <-ctx.Done():
			}
			return
		}
		fmt.Fprintln(os.Stderr, "press Enter to stop recording")
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Scan()
	}()

	// Wait for the stop trigger unless the pipeline fails first.
	select {
	case <-stop:
		if err := controller.Stop(ctx); err != nil {
			return err
		}
	case outcome := <-sink.outcomes:
		return reportOutcome(outcome)
	case <-ctx.Done():
		_ = controller.Cancel()
		return ctx.Err()
	}

	select {
	case outcome := <-sink.outcomes:
		return reportOutcome(outcome)
	case <-ctx.Done():
		_ = controller.Cancel()
		return ctx.Err()
	}
}

func reportOutcome(outcome domain.Outcome) error {
	switch outcome.Kind {
	case domain.OutcomeFeedback:
		fmt.Printf("recording %s processed\n", outcome.RecordingID)
		if len(outcome.Results) > 0 {
			fmt.Println(string(outcome.Results))
		}
		return nil
	default:
		if outcome.Message != "" {
			return fmt.Errorf("%s: %s", outcome.ErrorType, outcome.Message)
		}
		return fmt.Errorf("%s", outcome.ErrorType)
	}
}
