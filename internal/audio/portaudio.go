package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"orato/internal/ports"
)

const portaudioChunk = 2048

// PortAudioRecorder captures from the default input device in-process and
// writes a WAV file. It ignores the configured container extension; PortAudio
// sessions always produce wav.
type PortAudioRecorder struct{}

func NewPortAudioRecorder() *PortAudioRecorder {
	return &PortAudioRecorder{}
}

func (r *PortAudioRecorder) Start(ctx context.Context, cfg ports.CaptureConfig) (ports.CaptureSession, error) {
	cfg = withCaptureDefaults(cfg)
	cfg.FileExtension = "wav"
	path := sessionFilePath(cfg)

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	buf := make([]float32, portaudioChunk*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), portaudioChunk, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("opening input stream: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("creating recording file: %w", err)
	}
	enc := wav.NewEncoder(file, cfg.SampleRate, 16, cfg.Channels, 1)

	if err := stream.Start(); err != nil {
		_ = enc.Close()
		_ = file.Close()
		_ = os.Remove(path)
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("starting input stream: %w", err)
	}

	session := &portaudioSession{
		path:     path,
		stream:   stream,
		buf:      buf,
		file:     file,
		enc:      enc,
		format:   &audio.Format{NumChannels: cfg.Channels, SampleRate: cfg.SampleRate},
		done:     make(chan struct{}),
		captured: make(chan struct{}),
	}
	go session.captureLoop(ctx)

	return session, nil
}

type portaudioSession struct {
	path   string
	stream *portaudio.Stream
	buf    []float32
	file   *os.File
	enc    *wav.Encoder
	format *audio.Format

	meter meterCell

	done     chan struct{}
	captured chan struct{}
	loopErr  error

	stopOnce sync.Once
	stopErr  error
}

func (s *portaudioSession) Meter() (float64, bool) {
	return s.meter.Load()
}

func (s *portaudioSession) captureLoop(ctx context.Context) {
	defer close(s.captured)

	ints := make([]int, len(s.buf))
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			s.loopErr = fmt.Errorf("reading input stream: %w", err)
			return
		}

		var sum float64
		for i, v := range s.buf {
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			ints[i] = int(v * math.MaxInt16)
			sum += float64(v) * float64(v)
		}
		rms := math.Sqrt(sum / float64(len(s.buf)))
		if rms <= 0 {
			s.meter.Store(silenceFloorDB)
		} else {
			s.meter.Store(math.Max(20*math.Log10(rms), silenceFloorDB))
		}

		if err := s.enc.Write(&audio.IntBuffer{Format: s.format, Data: ints, SourceBitDepth: 16}); err != nil {
			s.loopErr = fmt.Errorf("writing wav frames: %w", err)
			return
		}
	}
}

func (s *portaudioSession) Stop() (string, error) {
	s.stopOnce.Do(func() {
		close(s.done)
		<-s.captured

		if err := s.stream.Stop(); err != nil && s.stopErr == nil {
			s.stopErr = fmt.Errorf("stopping input stream: %w", err)
		}
		_ = s.stream.Close()
		_ = portaudio.Terminate()

		if err := s.enc.Close(); err != nil && s.stopErr == nil {
			s.stopErr = fmt.Errorf("finalizing wav file: %w", err)
		}
		if err := s.file.Close(); err != nil && s.stopErr == nil {
			s.stopErr = err
		}
		if s.stopErr == nil && s.loopErr != nil {
			s.stopErr = s.loopErr
		}
		if s.stopErr != nil {
			_ = os.Remove(s.path)
		}
	})

	if s.stopErr != nil {
		return "", s.stopErr
	}
	return s.path, nil
}
