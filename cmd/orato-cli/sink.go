package main

import (
	"fmt"
	"os"

	"orato/internal/domain"
	"orato/internal/log"
)

// consoleSink renders pipeline events on stderr and hands the terminal
// outcome to the command loop.
type consoleSink struct {
	outcomes chan domain.Outcome
}

func newConsoleSink() *consoleSink {
	return &consoleSink{outcomes: make(chan domain.Outcome, 1)}
}

func (s *consoleSink) PhaseChanged(phase domain.Phase, reason domain.PhaseReason) {
	fmt.Fprintf(os.Stderr, "phase: %s (%s)\n", phase, reason)
}

func (s *consoleSink) CountdownTick(count int) {
	fmt.Fprintf(os.Stderr, "starting in %d...\n", count)
}

func (s *consoleSink) Tick(remainingSeconds, durationSeconds int, formatted string) {
	fmt.Fprintf(os.Stderr, "\rrecording %s remaining ", formatted)
}

func (s *consoleSink) AudioLevel(level float64, anim domain.AnimationParams) {
	// The terminal has no orb to animate.
}

func (s *consoleSink) Outcome(outcome domain.Outcome) {
	fmt.Fprintln(os.Stderr)
	select {
	case s.outcomes <- outcome:
	default:
	}
}

func (s *consoleSink) SessionError(code domain.ErrorCode, detail string) {
	log.WithComponent("cli").Error().Str("code", string(code)).Msg(detail)
}
