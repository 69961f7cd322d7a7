// Package watch observes server-side processing state for one uploaded
// recording and resolves to a terminal outcome exactly once.
package watch

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"orato/internal/domain"
	"orato/internal/ports"
)

const fallbackFailureMessage = "Processing failed"

// Watcher resolves processing outcomes by racing a realtime subscription
// against a one-shot status fetch. The race is deliberate: the fetch covers
// jobs that finished before the subscription was established.
type Watcher struct {
	feed    ports.StatusFeed
	fetcher ports.StatusFetcher
	logger  zerolog.Logger
}

func NewWatcher(feed ports.StatusFeed, fetcher ports.StatusFetcher, logger zerolog.Logger) *Watcher {
	return &Watcher{feed: feed, fetcher: fetcher, logger: logger}
}

// Watch starts observing audioID and calls resolve with the terminal outcome
// exactly once, no matter how many paths observe a terminal status. Close the
// returned handle on teardown; it unsubscribes unconditionally.
func (w *Watcher) Watch(ctx context.Context, audioID string, resolve func(domain.Outcome)) *Handle {
	h := &Handle{resolve: resolve}

	if audioID == "" {
		// Precondition violation, not a processing fault.
		w.logger.Error().Msg("watch requested without an audio id")
		h.deliver(domain.Outcome{
			Kind:      domain.OutcomeError,
			ErrorType: domain.ErrorUnknown,
			Message:   "No recording ID provided",
		})
		return h
	}

	sub, err := w.feed.Subscribe(ctx, audioID)
	if err != nil {
		w.logger.Error().Err(err).Str("audio_id", audioID).Msg("realtime subscription failed")
		h.deliver(domain.Outcome{
			Kind:        domain.OutcomeError,
			RecordingID: audioID,
			ErrorType:   domain.ErrorSubscription,
			Message:     "Failed to connect to processing service",
		})
		return h
	}
	h.setSubscription(sub)

	h.wg.Add(2)
	go w.consume(h, sub, audioID)
	go w.fetchOnce(ctx, h, audioID)

	return h
}

func (w *Watcher) consume(h *Handle, sub ports.StatusSubscription, audioID string) {
	defer h.wg.Done()

	for update := range sub.Updates() {
		w.logger.Debug().Str("audio_id", audioID).Str("status", string(update.Status)).Msg("processing status updated")
		if w.tryResolve(h, audioID, update) {
			return
		}
	}

	if err := sub.Err(); err != nil {
		w.logger.Error().Err(err).Str("audio_id", audioID).Msg("realtime channel failed")
		h.deliver(domain.Outcome{
			Kind:        domain.OutcomeError,
			RecordingID: audioID,
			ErrorType:   domain.ErrorSubscription,
			Message:     "Failed to connect to processing service",
		})
	}
}

func (w *Watcher) fetchOnce(ctx context.Context, h *Handle, audioID string) {
	defer h.wg.Done()

	update, err := w.fetcher.FetchStatus(ctx, audioID)
	if err != nil {
		// The subscription remains the authoritative path; a failed probe is
		// logged, not surfaced.
		w.logger.Warn().Err(err).Str("audio_id", audioID).Msg("status fetch failed")
		return
	}
	w.tryResolve(h, audioID, update)
}

// tryResolve delivers an outcome if the update is terminal. Returns true when
// the watch is finished with this update path.
func (w *Watcher) tryResolve(h *Handle, audioID string, update domain.ProcessingUpdate) bool {
	switch update.Status {
	case domain.ProcessingComplete:
		results := update.Results
		if len(results) == 0 {
			results = json.RawMessage("{}")
		}
		h.deliver(domain.Outcome{
			Kind:        domain.OutcomeFeedback,
			RecordingID: audioID,
			Results:     results,
		})
		return true
	case domain.ProcessingFailed:
		message := update.ErrorMessage
		if message == "" {
			message = fallbackFailureMessage
		}
		h.deliver(domain.Outcome{
			Kind:        domain.OutcomeError,
			RecordingID: audioID,
			ErrorType:   domain.ErrorProcessingFailed,
			Message:     message,
		})
		return true
	default:
		return false
	}
}

// Handle is one active watch. Close is idempotent and safe before, during,
// and after resolution.
type Handle struct {
	resolve func(domain.Outcome)

	mu  sync.Mutex
	sub ports.StatusSubscription

	once sync.Once
	wg   sync.WaitGroup
}

func (h *Handle) setSubscription(sub ports.StatusSubscription) {
	h.mu.Lock()
	h.sub = sub
	h.mu.Unlock()
}

// deliver invokes the resolve callback at most once and unsubscribes
// immediately so no second terminal observation can act. The callback runs
// on its own goroutine: resolution usually closes this handle, and Close
// must be able to wait for the observing loops without waiting on itself.
func (h *Handle) deliver(outcome domain.Outcome) {
	h.once.Do(func() {
		h.closeSubscription()
		if h.resolve != nil {
			go h.resolve(outcome)
		}
	})
}

// Close tears the watch down without resolving. Always call on unmount; a
// subscription must never outlive the screen that created it.
func (h *Handle) Close() {
	h.once.Do(func() {})
	h.closeSubscription()
	h.wg.Wait()
}

func (h *Handle) closeSubscription() {
	h.mu.Lock()
	sub := h.sub
	h.sub = nil
	h.mu.Unlock()
	if sub != nil {
		_ = sub.Close()
	}
}
