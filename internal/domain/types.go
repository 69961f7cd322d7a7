package domain

import "encoding/json"

// Phase models the recording pipeline lifecycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseCountdown Phase = "countdown"
	PhaseRecording Phase = "recording"
	PhaseStopped   Phase = "stopped"
	PhaseUploading Phase = "uploading"
)

// PhaseReason provides a structured reason for phase transitions.
type PhaseReason string

const (
	ReasonScreenEntered     PhaseReason = "screen_entered"
	ReasonCountdownStarted  PhaseReason = "countdown_started"
	ReasonCountdownFinished PhaseReason = "countdown_finished"
	ReasonStoppedByUser     PhaseReason = "stopped_by_user"
	ReasonTimeExpired       PhaseReason = "time_expired"
	ReasonUploadStarted     PhaseReason = "upload_started"
	ReasonSessionCancelled  PhaseReason = "session_cancelled"
)

// ErrorType selects user-facing copy on the error screen. It carries no
// structured payload beyond the type itself.
type ErrorType string

const (
	ErrorDurationTooShort ErrorType = "duration_too_short"
	ErrorUploadFailed     ErrorType = "upload_failed"
	ErrorProcessingFailed ErrorType = "processing_failed"
	ErrorSubscription     ErrorType = "subscription_error"
	ErrorUnknown          ErrorType = "unknown"
)

// UploadError is the failure taxonomy returned by the upload client.
type UploadError string

const (
	UploadErrMissingURIOrUser UploadError = "missing_uri_or_user"
	UploadErrGetUploadURL     UploadError = "failed_to_get_upload_url"
	UploadErrUploadFailed     UploadError = "upload_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors emitted to the UI.
type ErrorCode string

const (
	ErrorCodeStartup      ErrorCode = "startup"
	ErrorCodePermission   ErrorCode = "permission"
	ErrorCodeCaptureStart ErrorCode = "capture_start"
	ErrorCodeCaptureStop  ErrorCode = "capture_stop"
	ErrorCodeUpload       ErrorCode = "upload"
	ErrorCodeWatch        ErrorCode = "watch"
)

// ProcessingStatus is the server-owned state of an uploaded recording.
type ProcessingStatus string

const (
	ProcessingPending  ProcessingStatus = "pending"
	ProcessingComplete ProcessingStatus = "complete"
	ProcessingFailed   ProcessingStatus = "failed"
)

// Terminal reports whether no further transitions occur for this status.
func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingComplete || s == ProcessingFailed
}

// ProcessingUpdate is one observed row state for an audio processing job.
// Results is passed through opaquely; the client never parses it beyond JSON.
type ProcessingUpdate struct {
	AudioID      string           `json:"audio_id"`
	Status       ProcessingStatus `json:"status"`
	Results      json.RawMessage  `json:"results"`
	ErrorMessage string           `json:"error_message"`
}

// UploadTicket is the server-issued presigned upload slot. StoragePath,
// UploadURL and ExpiresIn are consumed once and discarded; AudioID becomes
// the durable handle for the rest of the pipeline.
type UploadTicket struct {
	AudioID     string `json:"audioId"`
	StoragePath string `json:"storagePath"`
	UploadURL   string `json:"uploadUrl"`
	ExpiresIn   int    `json:"expiresIn"`
}

// OutcomeKind distinguishes the two terminal screens.
type OutcomeKind string

const (
	OutcomeFeedback OutcomeKind = "feedback"
	OutcomeError    OutcomeKind = "error"
)

// Outcome is the navigation payload handed to the screen layer once the
// pipeline reaches a terminal state.
type Outcome struct {
	Kind        OutcomeKind     `json:"kind"`
	RecordingID string          `json:"recordingId,omitempty"`
	Results     json.RawMessage `json:"results,omitempty"`
	ErrorType   ErrorType       `json:"errorType,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// AnimationParams are cosmetic values derived from the live audio level.
// More input level always means more visually energetic output.
type AnimationParams struct {
	Amplitude   float64 `json:"amplitude"`
	Speed       float64 `json:"speed"`
	Scale       float64 `json:"scale"`
	GlowOpacity float64 `json:"glowOpacity"`
}

// Status summarizes the current runtime status for the UI.
type Status struct {
	Phase   Phase  `json:"phase"`
	Active  bool   `json:"active"`
	Message string `json:"message,omitempty"`
}
