// Package usecase hosts the recording phase state machine that threads the
// countdown, capture, upload and processing-watch components into one
// session: idle → countdown → recording → stopped → uploading → outcome.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orato/internal/capture"
	"orato/internal/countdown"
	"orato/internal/domain"
	"orato/internal/ports"
	"orato/internal/upload"
	"orato/internal/watch"
)

var (
	// ErrNoActiveSession is returned when Stop or Cancel finds nothing to act on.
	ErrNoActiveSession = errors.New("no active recording session")
	// ErrPermissionDenied is returned when microphone access is not granted.
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Config controls session behavior. The interval fields exist for tests and
// default to one second.
type Config struct {
	Capture             ports.CaptureConfig
	CountdownSeconds    int
	MaxRecordingSeconds int
	MinRecordingSeconds int
	NoiseFloorDB        float64
	LevelCeilingDB      float64
	MeterInterval       time.Duration

	CountdownInterval time.Duration
	TickInterval      time.Duration
}

// SessionController orchestrates one recording session at a time.
type SessionController struct {
	recorder    ports.Recorder
	uploader    *upload.Uploader
	watcher     *watch.Watcher
	permissions ports.PermissionChecker
	tokens      ports.TokenSource
	events      ports.EventSink
	cfg         Config
	logger      zerolog.Logger

	mu      sync.Mutex
	current *activeSession
}

func NewSessionController(
	recorder ports.Recorder,
	uploader *upload.Uploader,
	watcher *watch.Watcher,
	permissions ports.PermissionChecker,
	tokens ports.TokenSource,
	events ports.EventSink,
	cfg Config,
	logger zerolog.Logger,
) *SessionController {
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = 3
	}
	if cfg.MaxRecordingSeconds <= 0 {
		cfg.MaxRecordingSeconds = 600
	}
	if cfg.MinRecordingSeconds < 0 {
		cfg.MinRecordingSeconds = 20
	}
	return &SessionController{
		recorder:    recorder,
		uploader:    uploader,
		watcher:     watcher,
		permissions: permissions,
		tokens:      tokens,
		events:      events,
		cfg:         cfg,
		logger:      logger,
	}
}

// Start enters the pipeline: permission preflight, then the pre-roll
// countdown, then capture. An existing session is discarded first.
func (c *SessionController) Start(ctx context.Context) error {
	if c.permissions != nil {
		granted, err := c.permissions.RequestPermission(ctx)
		if err != nil {
			c.events.SessionError(domain.ErrorCodePermission, err.Error())
			return fmt.Errorf("requesting microphone permission: %w", err)
		}
		if !granted {
			// Recoverable by the user in system settings; not a pipeline fault.
			c.events.SessionError(domain.ErrorCodePermission, "microphone access denied")
			return ErrPermissionDenied
		}
	}

	c.mu.Lock()
	previous := c.current
	c.current = nil
	c.mu.Unlock()
	if previous != nil {
		previous.discard()
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	session := &activeSession{
		id:     id,
		ctx:    sessionCtx,
		cancel: cancel,
		phase:  domain.PhaseIdle,
		logger: c.logger.With().Str("session_id", id).Logger(),
	}

	session.capture = capture.NewController(c.recorder, capture.Config{
		Capture:             c.cfg.Capture,
		MaxRecordingSeconds: c.cfg.MaxRecordingSeconds,
		NoiseFloorDB:        c.cfg.NoiseFloorDB,
		LevelCeilingDB:      c.cfg.LevelCeilingDB,
		MeterInterval:       c.cfg.MeterInterval,
		TickInterval:        c.cfg.TickInterval,
	}, capture.Callbacks{
		OnTick: func(remaining, duration int) {
			c.events.Tick(remaining, duration, FormatTime(remaining))
		},
		OnLevel: func(level float64, anim domain.AnimationParams) {
			c.events.AudioLevel(level, anim)
		},
		OnTimeExpired: func(res capture.Result, err error) {
			// Hard ceiling; treated like a stop the user didn't get to make.
			if session.trySetPhase(domain.PhaseRecording, domain.PhaseStopped) {
				c.events.PhaseChanged(domain.PhaseStopped, domain.ReasonTimeExpired)
				c.finishRecording(session, res, err)
			}
		},
		OnError: func(err error) {
			c.events.SessionError(domain.ErrorCodeCaptureStart, err.Error())
		},
	}, session.logger.With().Str("component", "capture").Logger())

	session.countdown = countdown.New(c.cfg.CountdownSeconds, c.cfg.CountdownInterval, countdown.Callbacks{
		OnTick: func(count int) {
			c.events.CountdownTick(count)
		},
		OnComplete: func() {
			c.beginCapture(session)
		},
	})

	c.mu.Lock()
	c.current = session
	c.mu.Unlock()

	session.setPhase(domain.PhaseCountdown)
	c.events.PhaseChanged(domain.PhaseCountdown, domain.ReasonCountdownStarted)
	session.countdown.Start()

	session.logger.Info().Int("countdown_s", c.cfg.CountdownSeconds).Msg("session started")
	return nil
}

// Stop ends capture from the recording phase and drives the rest of the
// pipeline: duration gate, upload, processing watch.
func (c *SessionController) Stop(ctx context.Context) error {
	session, err := c.getCurrent()
	if err != nil {
		return err
	}
	if !session.trySetPhase(domain.PhaseRecording, domain.PhaseStopped) {
		return fmt.Errorf("cannot stop in phase %q", session.getPhase())
	}
	c.events.PhaseChanged(domain.PhaseStopped, domain.ReasonStoppedByUser)

	res, stopErr := session.capture.Stop()
	if errors.Is(stopErr, capture.ErrAlreadyStopped) && res.URI != "" {
		// The time ceiling stopped capture in the same instant; the result
		// is still the one to use.
		stopErr = nil
	}
	c.finishRecording(session, res, stopErr)
	return nil
}

// Cancel abandons the session. From countdown the timer is cleared; from
// recording, capture is stopped best-effort and the file discarded.
// Cancellation is always terminal for the session instance.
func (c *SessionController) Cancel() error {
	c.mu.Lock()
	session := c.current
	c.current = nil
	c.mu.Unlock()
	if session == nil {
		return ErrNoActiveSession
	}

	session.discard()
	c.events.PhaseChanged(domain.PhaseIdle, domain.ReasonSessionCancelled)
	session.logger.Info().Msg("session cancelled")
	return nil
}

// Status returns the current pipeline status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{Phase: domain.PhaseIdle, Active: false}
	}
	phase := c.current.getPhase()
	return domain.Status{Phase: phase, Active: phase != domain.PhaseIdle}
}

// Close tears down any active session without emitting a cancel transition.
func (c *SessionController) Close() {
	c.mu.Lock()
	session := c.current
	c.current = nil
	c.mu.Unlock()
	if session != nil {
		session.discard()
	}
}

// beginCapture is the countdown → recording transition.
func (c *SessionController) beginCapture(session *activeSession) {
	if err := session.capture.Start(session.ctx); err != nil {
		// OnError already reported the detail.
		c.deliverOutcome(session, domain.Outcome{
			Kind:      domain.OutcomeError,
			ErrorType: domain.ErrorUnknown,
			Message:   err.Error(),
		})
		return
	}
	session.setPhase(domain.PhaseRecording)
	c.events.PhaseChanged(domain.PhaseRecording, domain.ReasonCountdownFinished)
}

// finishRecording runs the stopped → uploading → outcome tail of the
// pipeline. res.URI ownership transfers to the upload client (or is deleted
// here when the session is rejected before upload).
func (c *SessionController) finishRecording(session *activeSession, res capture.Result, stopErr error) {
	if stopErr != nil || res.URI == "" {
		if stopErr != nil {
			c.events.SessionError(domain.ErrorCodeCaptureStop, stopErr.Error())
		}
		c.deliverOutcome(session, domain.Outcome{
			Kind:      domain.OutcomeError,
			ErrorType: domain.ErrorUnknown,
			Message:   "Recording could not be saved",
		})
		return
	}

	if res.Duration < c.cfg.MinRecordingSeconds {
		// Validation outcome, not a technical failure. The upload client is
		// never consulted for a too-short take.
		upload.DeleteLocalFile(res.URI, session.logger)
		session.logger.Info().Int("duration_s", res.Duration).Msg("recording below minimum duration")
		c.deliverOutcome(session, domain.Outcome{
			Kind:      domain.OutcomeError,
			ErrorType: domain.ErrorDurationTooShort,
		})
		return
	}

	session.setPhase(domain.PhaseUploading)
	c.events.PhaseChanged(domain.PhaseUploading, domain.ReasonUploadStarted)

	result := c.uploader.Upload(session.ctx, res.URI, c.tokens.UserID())
	if !result.Success {
		c.events.SessionError(domain.ErrorCodeUpload, string(result.Error))
		errorType := domain.ErrorUploadFailed
		if result.Error == domain.UploadErrMissingURIOrUser {
			errorType = domain.ErrorUnknown
		}
		c.deliverOutcome(session, domain.Outcome{Kind: domain.OutcomeError, ErrorType: errorType})
		return
	}

	session.logger.Info().Str("recording_id", result.RecordingID).Msg("upload complete, watching processing")
	handle := c.watcher.Watch(session.ctx, result.RecordingID, func(outcome domain.Outcome) {
		c.deliverOutcome(session, outcome)
	})
	session.setWatch(handle)
}

// deliverOutcome hands the terminal outcome to the screen layer exactly once
// and retires the session.
func (c *SessionController) deliverOutcome(session *activeSession, outcome domain.Outcome) {
	session.resolveOnce.Do(func() {
		c.mu.Lock()
		if c.current == session {
			c.current = nil
		}
		c.mu.Unlock()

		session.teardown()
		c.events.Outcome(outcome)
		session.logger.Info().
			Str("kind", string(outcome.Kind)).
			Str("error_type", string(outcome.ErrorType)).
			Msg("session finished")
	})
}

func (c *SessionController) getCurrent() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

// FormatTime renders seconds as MM:SS for the timer display.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
