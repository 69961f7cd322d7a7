// Package capture owns the device recording resource end-to-end: start/stop,
// wall-clock accounting against the recording ceiling, and live input
// metering for visual feedback.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"orato/internal/domain"
	"orato/internal/ports"
)

var (
	// ErrAlreadyRecording is returned by Start while a capture is active.
	ErrAlreadyRecording = errors.New("capture already in progress")
	// ErrNotRecording is returned by Stop when no capture was started.
	ErrNotRecording = errors.New("no capture in progress")
	// ErrAlreadyStopped is returned by Stop after a capture has ended.
	// Callers must not treat a stale result as a fresh recording.
	ErrAlreadyStopped = errors.New("capture already stopped")
)

// Result is the product of a finished capture. An empty URI means the stop
// failed and there is no usable file; callers treat that as a hard failure,
// not an empty recording.
type Result struct {
	URI      string
	Duration int
}

// Config controls capture behavior. TickInterval exists for tests; it is one
// second in production.
type Config struct {
	Capture             ports.CaptureConfig
	MaxRecordingSeconds int
	NoiseFloorDB        float64
	LevelCeilingDB      float64
	MeterInterval       time.Duration
	TickInterval        time.Duration
}

// Callbacks are invoked from the controller's timer goroutines.
type Callbacks struct {
	OnTick func(remainingSeconds, durationSeconds int)
	// OnLevel delivers the normalized input level and its derived animation
	// parameters while recording.
	OnLevel func(level float64, anim domain.AnimationParams)
	// OnTimeExpired fires exactly once when the recording ceiling is reached,
	// after capture has been stopped autonomously.
	OnTimeExpired func(res Result, err error)
	OnError       func(err error)
}

// Controller drives one capture session at a time.
type Controller struct {
	recorder ports.Recorder
	cfg      Config
	cb       Callbacks
	logger   zerolog.Logger

	mu        sync.Mutex
	session   ports.CaptureSession
	recording bool
	stopped   bool
	duration  int
	remaining int
	done      chan struct{}
	wg        sync.WaitGroup
	expired   bool

	result  Result
	stopErr error
}

func NewController(recorder ports.Recorder, cfg Config, cb Callbacks, logger zerolog.Logger) *Controller {
	if cfg.MaxRecordingSeconds <= 0 {
		cfg.MaxRecordingSeconds = 600
	}
	if cfg.MeterInterval <= 0 {
		cfg.MeterInterval = 50 * time.Millisecond
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.LevelCeilingDB <= cfg.NoiseFloorDB {
		cfg.NoiseFloorDB = DefaultNoiseFloorDB
		cfg.LevelCeilingDB = DefaultLevelCeilingDB
	}
	return &Controller{recorder: recorder, cfg: cfg, cb: cb, logger: logger}
}

// Start configures the device session and begins capture. On failure the
// OnError callback fires and no recording state is entered.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.mu.Unlock()

	session, err := c.recorder.Start(ctx, c.cfg.Capture)
	if err != nil {
		c.logger.Error().Err(err).Msg("capture start failed")
		if c.cb.OnError != nil {
			c.cb.OnError(err)
		}
		return err
	}

	c.mu.Lock()
	c.session = session
	c.recording = true
	c.stopped = false
	c.expired = false
	c.duration = 0
	c.remaining = c.cfg.MaxRecordingSeconds
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.wg.Add(2)
	go c.tickLoop(done)
	go c.meterLoop(session, done)

	c.logger.Debug().Int("max_seconds", c.cfg.MaxRecordingSeconds).Msg("capture started")
	return nil
}

// Stop ends capture and returns the finished file path and accumulated
// duration. A second Stop after a successful one returns ErrAlreadyStopped.
func (c *Controller) Stop() (Result, error) {
	c.mu.Lock()
	if c.session == nil && !c.stopped {
		c.mu.Unlock()
		return Result{}, ErrNotRecording
	}
	if c.stopped {
		res, err := c.result, c.stopErr
		c.mu.Unlock()
		if err != nil {
			return res, err
		}
		return res, ErrAlreadyStopped
	}
	res, err := c.stopLocked()
	c.mu.Unlock()

	c.wg.Wait()
	return res, err
}

// Duration returns the accumulated recording seconds so far.
func (c *Controller) Duration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Remaining returns the seconds left before the ceiling forces a stop.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Recording reports whether a capture is active.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Close tears the controller down. Timers are cancelled and, if capture is
// still active, a best-effort stop is issued; failures are swallowed because
// the device resource may already be gone.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.recording && !c.stopped {
		_, _ = c.stopLocked()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// stopLocked performs the actual device stop. Callers hold c.mu.
func (c *Controller) stopLocked() (Result, error) {
	c.recording = false
	c.stopped = true
	if c.done != nil {
		close(c.done)
		c.done = nil
	}

	path, err := c.session.Stop()
	c.session = nil
	if err != nil {
		c.logger.Error().Err(err).Msg("capture stop failed")
		c.result = Result{URI: "", Duration: c.duration}
		c.stopErr = err
		return c.result, err
	}

	c.result = Result{URI: path, Duration: c.duration}
	c.stopErr = nil
	c.logger.Info().Str("path", path).Int("duration_s", c.duration).Msg("capture stopped")
	return c.result, nil
}

func (c *Controller) tickLoop(done chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if !c.recording {
			c.mu.Unlock()
			return
		}
		c.duration++
		c.remaining--
		duration, remaining := c.duration, c.remaining

		if remaining <= 0 {
			// Hard ceiling: stop autonomously, then signal expiry once. The
			// expiry callback usually tears this controller down, so it runs
			// off the tick goroutine to keep Close from waiting on itself.
			c.expired = true
			res, err := c.stopLocked()
			c.mu.Unlock()

			go func() {
				if c.cb.OnTick != nil {
					c.cb.OnTick(0, duration)
				}
				if c.cb.OnTimeExpired != nil {
					c.cb.OnTimeExpired(res, err)
				}
			}()
			return
		}
		c.mu.Unlock()

		if c.cb.OnTick != nil {
			c.cb.OnTick(remaining, duration)
		}
	}
}

func (c *Controller) meterLoop(session ports.CaptureSession, done chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.MeterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			// Recording ended; park the needle.
			if c.cb.OnLevel != nil {
				c.cb.OnLevel(0, Animate(0))
			}
			return
		case <-ticker.C:
		}

		dbfs, ok := session.Meter()
		if !ok {
			continue
		}
		level := NormalizeLevel(dbfs, c.cfg.NoiseFloorDB, c.cfg.LevelCeilingDB)
		if c.cb.OnLevel != nil {
			c.cb.OnLevel(level, Animate(level))
		}
	}
}
