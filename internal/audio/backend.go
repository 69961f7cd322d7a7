package audio

import (
	"strings"

	"orato/internal/ports"
)

// BackendType selects the recorder implementation.
type BackendType string

const (
	BackendAuto      BackendType = "auto"
	BackendFFmpeg    BackendType = "ffmpeg"
	BackendPortAudio BackendType = "portaudio"
)

// NewRecorder returns the recorder for the configured backend. Auto prefers
// ffmpeg when the binary is on PATH and falls back to PortAudio otherwise.
func NewRecorder(backend, ffmpegCommand string) ports.Recorder {
	switch BackendType(strings.ToLower(strings.TrimSpace(backend))) {
	case BackendFFmpeg:
		return NewFFmpegRecorder(ffmpegCommand)
	case BackendPortAudio:
		return NewPortAudioRecorder()
	default:
		ff := NewFFmpegRecorder(ffmpegCommand)
		if ff.Available() {
			return ff
		}
		return NewPortAudioRecorder()
	}
}
