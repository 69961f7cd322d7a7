// Package audio provides the recorder backends behind ports.Recorder: an
// ffmpeg subprocess backend and an in-process PortAudio backend. Both write
// one local file per session and expose live dBFS metering.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"orato/internal/ports"
)

// silenceFloorDB is reported when a metering window contains no signal.
const silenceFloorDB = -96.0

// FFmpegRecorder captures microphone audio with an ffmpeg subprocess. The
// process writes the session file and tees s16le PCM to stdout, from which
// the session derives its metering signal.
type FFmpegRecorder struct {
	command string
}

func NewFFmpegRecorder(command string) *FFmpegRecorder {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegRecorder{command: command}
}

// Available reports whether the ffmpeg binary can be found on PATH.
func (r *FFmpegRecorder) Available() bool {
	_, err := exec.LookPath(r.command)
	return err == nil
}

func (r *FFmpegRecorder) Start(ctx context.Context, cfg ports.CaptureConfig) (ports.CaptureSession, error) {
	cfg = withCaptureDefaults(cfg)
	path := sessionFilePath(cfg)

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		path,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// ffmpeg fails fast on a bad device or format; give it a moment so we
	// can surface that as a start error instead of a broken session.
	select {
	case err := <-waitErr:
		_ = os.Remove(path)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimmed(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	session := &ffmpegSession{
		path:    path,
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}
	go session.meterLoop()

	return session, nil
}

type ffmpegSession struct {
	path   string
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	meter meterCell

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Meter() (float64, bool) {
	return s.meter.Load()
}

func (s *ffmpegSession) Stop() (string, error) {
	s.stopOnce.Do(func() {
		if s.process != nil {
			// SIGINT lets ffmpeg flush and finalize the container file.
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil {
			if s.stderr != nil && s.stderr.Len() > 0 {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimmed(s.stderr.String()))
			}
			// A failed stop leaves no usable recording; drop the partial
			// file since no caller will ever receive its path.
			_ = os.Remove(s.path)
		}
	})

	if s.stopErr != nil {
		return "", s.stopErr
	}
	return s.path, nil
}

// meterLoop drains the PCM tee and keeps a rolling dBFS reading. Draining is
// mandatory even if nobody meters; a full pipe would stall ffmpeg.
func (s *ffmpegSession) meterLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.stdout.Read(buf)
		if n > 1 {
			s.meter.Store(pcm16DBFS(buf[:n-n%2]))
		}
		if err != nil {
			return
		}
	}
}

// pcm16DBFS computes the RMS level of little-endian 16-bit PCM in dBFS.
func pcm16DBFS(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return silenceFloorDB
	}
	var sum float64
	for i := 0; i < samples*2; i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i:])))
		sum += v * v
	}
	rms := math.Sqrt(sum/float64(samples)) / 32768.0
	if rms <= 0 {
		return silenceFloorDB
	}
	db := 20 * math.Log10(rms)
	if db < silenceFloorDB {
		return silenceFloorDB
	}
	return db
}

// meterCell is a lock-free holder for the latest dBFS reading.
type meterCell struct {
	bits  atomic.Uint64
	ready atomic.Bool
}

func (m *meterCell) Store(dbfs float64) {
	m.bits.Store(math.Float64bits(dbfs))
	m.ready.Store(true)
}

func (m *meterCell) Load() (float64, bool) {
	if !m.ready.Load() {
		return 0, false
	}
	return math.Float64frombits(m.bits.Load()), true
}

func withCaptureDefaults(cfg ports.CaptureConfig) ports.CaptureConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.TempDir()
	}
	if cfg.FileExtension == "" {
		cfg.FileExtension = "m4a"
	}
	return cfg
}

func sessionFilePath(cfg ports.CaptureConfig) string {
	name := fmt.Sprintf("orato-%s.%s", uuid.NewString(), cfg.FileExtension)
	return filepath.Join(cfg.OutputDir, name)
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
