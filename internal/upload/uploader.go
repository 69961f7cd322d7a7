// Package upload moves a finished local recording into durable remote
// storage via the presigned two-step exchange. The local file is deleted on
// every path out of Upload; leaving audio behind on device is as serious a
// defect as losing the upload.
package upload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"orato/internal/domain"
	"orato/internal/ports"
)

const defaultExtension = "m4a"

// Result is the typed outcome of one upload attempt.
type Result struct {
	Success     bool
	RecordingID string
	Error       domain.UploadError
}

// Uploader performs the two-step presigned upload. It does not serialize
// concurrent calls; IsUploading exists for UI gating only.
type Uploader struct {
	slots     ports.UploadSlotIssuer
	store     ports.ObjectStore
	logger    zerolog.Logger
	uploading atomic.Bool
}

func NewUploader(slots ports.UploadSlotIssuer, store ports.ObjectStore, logger zerolog.Logger) *Uploader {
	return &Uploader{slots: slots, store: store, logger: logger}
}

// IsUploading reports whether an upload is in flight.
func (u *Uploader) IsUploading() bool {
	return u.uploading.Load()
}

// Upload sends the recording at uri to storage on behalf of userID. The
// local file is removed before returning regardless of outcome. There is no
// automatic retry; retrying is a user-initiated re-record action.
func (u *Uploader) Upload(ctx context.Context, uri, userID string) Result {
	if uri == "" || userID == "" {
		if uri != "" {
			DeleteLocalFile(uri, u.logger)
		}
		return Result{Success: false, Error: domain.UploadErrMissingURIOrUser}
	}

	u.uploading.Store(true)
	defer u.uploading.Store(false)
	defer DeleteLocalFile(uri, u.logger)

	ext := fileExtension(uri)
	mimeType := "audio/" + ext

	ticket, err := u.slots.CreateUploadURL(ctx, mimeType, ext)
	if err != nil {
		u.logger.Error().Err(err).Msg("upload slot request failed")
		return Result{Success: false, Error: domain.UploadErrGetUploadURL}
	}

	data, err := os.ReadFile(uri)
	if err != nil {
		u.logger.Error().Err(err).Str("path", uri).Msg("reading recording file failed")
		return Result{Success: false, Error: domain.UploadErrUploadFailed}
	}

	if err := u.store.Put(ctx, ticket.UploadURL, mimeType, data); err != nil {
		u.logger.Error().Err(err).Str("audio_id", ticket.AudioID).Msg("storage upload failed")
		return Result{Success: false, Error: domain.UploadErrUploadFailed}
	}

	u.logger.Info().Str("audio_id", ticket.AudioID).Int("bytes", len(data)).Msg("recording uploaded")
	return Result{Success: true, RecordingID: ticket.AudioID}
}

// DeleteLocalFile removes a recording from the device. Failures are logged
// and swallowed; cleanup must never mask the operation that triggered it.
func DeleteLocalFile(uri string, logger zerolog.Logger) {
	if uri == "" {
		return
	}
	if err := os.Remove(uri); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", uri).Msg("failed to delete local recording file")
	}
}

func fileExtension(uri string) string {
	ext := strings.TrimPrefix(filepath.Ext(uri), ".")
	if ext == "" {
		return defaultExtension
	}
	return strings.ToLower(ext)
}
