package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"orato/internal/domain"
	"orato/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCaptureSession struct {
	mu        sync.Mutex
	path      string
	dbfs      float64
	hasMeter  bool
	stopErr   error
	stopCalls int
}

func (s *fakeCaptureSession) Meter() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbfs, s.hasMeter
}

func (s *fakeCaptureSession) Stop() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	if s.stopErr != nil {
		return "", s.stopErr
	}
	return s.path, nil
}

type fakeRecorder struct {
	session  ports.CaptureSession
	startErr error
}

func (r *fakeRecorder) Start(ctx context.Context, cfg ports.CaptureConfig) (ports.CaptureSession, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	return r.session, nil
}

func testConfig() Config {
	return Config{
		MaxRecordingSeconds: 600,
		NoiseFloorDB:        -35,
		LevelCeilingDB:      -5,
		MeterInterval:       2 * time.Millisecond,
		TickInterval:        3 * time.Millisecond,
	}
}

func TestControllerStartFailureReportsError(t *testing.T) {
	startErr := errors.New("device busy")
	var reported atomic.Value

	ctrl := NewController(&fakeRecorder{startErr: startErr}, testConfig(), Callbacks{
		OnError: func(err error) { reported.Store(err) },
	}, zerolog.Nop())

	if err := ctrl.Start(context.Background()); !errors.Is(err, startErr) {
		t.Fatalf("expected start error, got %v", err)
	}
	if ctrl.Recording() {
		t.Fatalf("controller must not be recording after failed start")
	}
	if got, _ := reported.Load().(error); !errors.Is(got, startErr) {
		t.Fatalf("OnError not invoked with start failure, got %v", got)
	}
}

func TestControllerStopReturnsPathAndDuration(t *testing.T) {
	session := &fakeCaptureSession{path: "/tmp/take.m4a"}
	ctrl := NewController(&fakeRecorder{session: session}, testConfig(), Callbacks{}, zerolog.Nop())

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	res, err := ctrl.Stop()
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if res.URI != "/tmp/take.m4a" {
		t.Fatalf("unexpected uri: %q", res.URI)
	}
	if res.Duration < 1 {
		t.Fatalf("expected accumulated duration, got %d", res.Duration)
	}

	if _, err := ctrl.Stop(); !errors.Is(err, ErrAlreadyStopped) {
		t.Fatalf("expected ErrAlreadyStopped on second stop, got %v", err)
	}
	if session.stopCalls != 1 {
		t.Fatalf("device stop must run once, got %d", session.stopCalls)
	}
}

func TestControllerStopWithoutStart(t *testing.T) {
	ctrl := NewController(&fakeRecorder{}, testConfig(), Callbacks{}, zerolog.Nop())
	if _, err := ctrl.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
}

func TestControllerCeilingStopsAutonomously(t *testing.T) {
	session := &fakeCaptureSession{path: "/tmp/max.m4a"}
	cfg := testConfig()
	cfg.MaxRecordingSeconds = 3

	var expirations atomic.Int32
	var expiredResult atomic.Value
	done := make(chan struct{})

	ctrl := NewController(&fakeRecorder{session: session}, cfg, Callbacks{
		OnTimeExpired: func(res Result, err error) {
			expiredResult.Store(res)
			if expirations.Add(1) == 1 {
				close(done)
			}
		},
	}, zerolog.Nop())

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("ceiling never expired")
	}
	time.Sleep(20 * time.Millisecond)

	if got := expirations.Load(); got != 1 {
		t.Fatalf("expected exactly one expiry, got %d", got)
	}
	res := expiredResult.Load().(Result)
	if res.Duration != 3 {
		t.Fatalf("duration at expiry should equal ceiling, got %d", res.Duration)
	}
	if res.URI != "/tmp/max.m4a" {
		t.Fatalf("unexpected uri at expiry: %q", res.URI)
	}
	if ctrl.Recording() {
		t.Fatalf("controller still recording after expiry")
	}
	if _, err := ctrl.Stop(); !errors.Is(err, ErrAlreadyStopped) {
		t.Fatalf("stop after expiry should report already stopped, got %v", err)
	}
}

func TestControllerStopFailureYieldsEmptyURI(t *testing.T) {
	session := &fakeCaptureSession{stopErr: errors.New("flush failed")}
	ctrl := NewController(&fakeRecorder{session: session}, testConfig(), Callbacks{}, zerolog.Nop())

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	res, err := ctrl.Stop()
	if err == nil {
		t.Fatalf("expected stop error")
	}
	if res.URI != "" {
		t.Fatalf("failed stop must not hand out a uri, got %q", res.URI)
	}
}

func TestControllerMetersWhileRecording(t *testing.T) {
	session := &fakeCaptureSession{path: "/tmp/level.m4a", dbfs: -20, hasMeter: true}

	var mu sync.Mutex
	var levels []float64
	var anims []domain.AnimationParams

	ctrl := NewController(&fakeRecorder{session: session}, testConfig(), Callbacks{
		OnLevel: func(level float64, anim domain.AnimationParams) {
			mu.Lock()
			levels = append(levels, level)
			anims = append(anims, anim)
			mu.Unlock()
		},
	}, zerolog.Nop())

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := ctrl.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(levels) == 0 {
		t.Fatalf("expected metering callbacks")
	}
	level := levels[0]
	if level <= 0 || level >= 1 {
		t.Fatalf("-20dB should map strictly between 0 and 1, got %v", level)
	}
	if anims[0] != Animate(level) {
		t.Fatalf("animation parameters must derive from the level")
	}
	// The final callback parks the needle at silence.
	if last := levels[len(levels)-1]; last != 0 {
		t.Fatalf("expected trailing zero level, got %v", last)
	}
}

func TestControllerCloseSwallowStopFailures(t *testing.T) {
	session := &fakeCaptureSession{stopErr: errors.New("already torn down")}
	ctrl := NewController(&fakeRecorder{session: session}, testConfig(), Callbacks{}, zerolog.Nop())

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	ctrl.Close()

	if ctrl.Recording() {
		t.Fatalf("controller still recording after close")
	}
	if session.stopCalls != 1 {
		t.Fatalf("expected one best-effort stop, got %d", session.stopCalls)
	}
}
