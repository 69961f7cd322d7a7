package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"orato/internal/capture"
	"orato/internal/countdown"
	"orato/internal/domain"
	"orato/internal/upload"
	"orato/internal/watch"
)

// activeSession is the ephemeral per-attempt state. It exists from screen
// entry until a terminal outcome or cancellation, never longer.
type activeSession struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	countdown *countdown.Timer
	capture   *capture.Controller

	phaseMu sync.Mutex
	phase   domain.Phase

	watchMu sync.Mutex
	watch   *watch.Handle

	resolveOnce sync.Once
}

func (s *activeSession) setPhase(phase domain.Phase) {
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()
	s.phase = phase
}

func (s *activeSession) getPhase() domain.Phase {
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()
	return s.phase
}

// trySetPhase performs a compare-and-swap transition; it returns false when
// the session is no longer in from, which keeps racing stop paths (user
// action vs. time ceiling) from both acting.
func (s *activeSession) trySetPhase(from, to domain.Phase) bool {
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()
	if s.phase != from {
		return false
	}
	s.phase = to
	return true
}

func (s *activeSession) setWatch(handle *watch.Handle) {
	s.watchMu.Lock()
	s.watch = handle
	s.watchMu.Unlock()
}

// teardown releases every timer and subscription the session owns. Safe to
// call more than once.
func (s *activeSession) teardown() {
	s.countdown.Cancel()
	s.capture.Close()

	s.watchMu.Lock()
	handle := s.watch
	s.watch = nil
	s.watchMu.Unlock()
	if handle != nil {
		handle.Close()
	}

	s.cancel()
	s.setPhase(domain.PhaseIdle)
}

// discard abandons the session: best-effort capture stop, local file
// deleted, everything cancelled. Used by Cancel and by a restart that
// replaces an unfinished session.
func (s *activeSession) discard() {
	s.resolveOnce.Do(func() {})

	s.countdown.Cancel()
	if s.capture.Recording() {
		if res, err := s.capture.Stop(); err == nil && res.URI != "" {
			upload.DeleteLocalFile(res.URI, s.logger)
		}
	}
	s.teardown()
}
