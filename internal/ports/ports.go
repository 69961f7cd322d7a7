package ports

import (
	"context"

	"orato/internal/domain"
)

// CaptureConfig describes how the microphone should be captured.
type CaptureConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	OutputDir   string
	// FileExtension is the container suffix of the produced file (m4a, wav).
	FileExtension string
}

// CaptureSession is a live device recording. Exactly one party holds the
// produced file path at any time; whoever receives it from Stop owns it.
type CaptureSession interface {
	// Meter returns the current input level in dBFS. ok is false when no
	// reading is available yet or metering is unsupported.
	Meter() (dbfs float64, ok bool)
	// Stop ends capture and returns the path of the finished local file.
	Stop() (path string, err error)
}

// Recorder creates microphone capture sessions.
type Recorder interface {
	Start(ctx context.Context, cfg CaptureConfig) (CaptureSession, error)
}

// PermissionChecker reports whether microphone access is granted.
type PermissionChecker interface {
	RequestPermission(ctx context.Context) (bool, error)
}

// TokenSource exposes the authenticated identity the pipeline needs. The
// authentication protocol itself lives outside this module.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	UserID() string
}

// UploadSlotIssuer requests presigned upload slots from the backend.
type UploadSlotIssuer interface {
	CreateUploadURL(ctx context.Context, mimeType, fileExtension string) (domain.UploadTicket, error)
}

// ObjectStore performs the direct client-to-storage upload.
type ObjectStore interface {
	Put(ctx context.Context, url, contentType string, body []byte) error
}

// StatusFetcher performs the one-shot processing status read.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, audioID string) (domain.ProcessingUpdate, error)
}

// StatusSubscription is an open realtime change feed for one audio id.
type StatusSubscription interface {
	Updates() <-chan domain.ProcessingUpdate
	// Err returns the channel-level failure after Updates is closed, nil on
	// clean shutdown.
	Err() error
	Close() error
}

// StatusFeed opens realtime subscriptions to processing status changes.
type StatusFeed interface {
	Subscribe(ctx context.Context, audioID string) (StatusSubscription, error)
}

// EventSink emits pipeline state and events to the screen layer.
type EventSink interface {
	PhaseChanged(phase domain.Phase, reason domain.PhaseReason)
	CountdownTick(count int)
	Tick(remainingSeconds, durationSeconds int, formatted string)
	AudioLevel(level float64, anim domain.AnimationParams)
	Outcome(outcome domain.Outcome)
	SessionError(code domain.ErrorCode, detail string)
}
