package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orato/internal/domain"
)

type fakeSlotIssuer struct {
	ticket   domain.UploadTicket
	err      error
	calls    int
	mimeType string
	ext      string
}

func (f *fakeSlotIssuer) CreateUploadURL(ctx context.Context, mimeType, fileExtension string) (domain.UploadTicket, error) {
	f.calls++
	f.mimeType = mimeType
	f.ext = fileExtension
	if f.err != nil {
		return domain.UploadTicket{}, f.err
	}
	return f.ticket, nil
}

type fakeStore struct {
	err         error
	calls       int
	url         string
	contentType string
	body        []byte
}

func (f *fakeStore) Put(ctx context.Context, url, contentType string, body []byte) error {
	f.calls++
	f.url = url
	f.contentType = contentType
	f.body = body
	return f.err
}

func writeRecording(t *testing.T, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	return path
}

func TestUploadSuccess(t *testing.T) {
	path := writeRecording(t, "take.m4a", []byte("audio-bytes"))
	slots := &fakeSlotIssuer{ticket: domain.UploadTicket{
		AudioID:   "rec-123",
		UploadURL: "https://storage.example/presigned",
	}}
	store := &fakeStore{}

	u := NewUploader(slots, store, zerolog.Nop())
	res := u.Upload(context.Background(), path, "user-1")

	require.True(t, res.Success)
	assert.Equal(t, "rec-123", res.RecordingID)
	assert.Equal(t, "audio/m4a", slots.mimeType)
	assert.Equal(t, "m4a", slots.ext)
	assert.Equal(t, "https://storage.example/presigned", store.url)
	assert.Equal(t, "audio/m4a", store.contentType)
	assert.Equal(t, []byte("audio-bytes"), store.body)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "local file must be deleted after success")
	assert.False(t, u.IsUploading())
}

func TestUploadMissingUserDeletesFile(t *testing.T) {
	path := writeRecording(t, "take.m4a", []byte("x"))
	slots := &fakeSlotIssuer{}
	store := &fakeStore{}

	res := NewUploader(slots, store, zerolog.Nop()).Upload(context.Background(), path, "")

	require.False(t, res.Success)
	assert.Equal(t, domain.UploadErrMissingURIOrUser, res.Error)
	assert.Zero(t, slots.calls)
	assert.Zero(t, store.calls)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "local file must be deleted even without a user")
}

func TestUploadMissingURI(t *testing.T) {
	res := NewUploader(&fakeSlotIssuer{}, &fakeStore{}, zerolog.Nop()).
		Upload(context.Background(), "", "user-1")

	require.False(t, res.Success)
	assert.Equal(t, domain.UploadErrMissingURIOrUser, res.Error)
}

func TestUploadSlotFailureDeletesFile(t *testing.T) {
	path := writeRecording(t, "take.m4a", []byte("x"))
	slots := &fakeSlotIssuer{err: errors.New("backend down")}
	store := &fakeStore{}

	res := NewUploader(slots, store, zerolog.Nop()).Upload(context.Background(), path, "user-1")

	require.False(t, res.Success)
	assert.Equal(t, domain.UploadErrGetUploadURL, res.Error)
	assert.Zero(t, store.calls, "storage must not be touched without a slot")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "local file must be deleted after slot failure")
}

func TestUploadPutFailureDeletesFile(t *testing.T) {
	path := writeRecording(t, "take.m4a", []byte("x"))
	slots := &fakeSlotIssuer{ticket: domain.UploadTicket{AudioID: "rec-9", UploadURL: "https://storage.example/p"}}
	store := &fakeStore{err: errors.New("403 expired")}

	res := NewUploader(slots, store, zerolog.Nop()).Upload(context.Background(), path, "user-1")

	require.False(t, res.Success)
	assert.Equal(t, domain.UploadErrUploadFailed, res.Error)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "local file must be deleted after a failed put")
}

func TestUploadUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vanished.m4a")
	slots := &fakeSlotIssuer{ticket: domain.UploadTicket{AudioID: "rec-9", UploadURL: "https://storage.example/p"}}
	store := &fakeStore{}

	res := NewUploader(slots, store, zerolog.Nop()).Upload(context.Background(), path, "user-1")

	require.False(t, res.Success)
	assert.Equal(t, domain.UploadErrUploadFailed, res.Error)
	assert.Zero(t, store.calls)
}

func TestFileExtension(t *testing.T) {
	cases := map[string]string{
		"/tmp/a.m4a":  "m4a",
		"/tmp/a.WAV":  "wav",
		"/tmp/noext":  "m4a",
		"/tmp/b.Flac": "flac",
	}
	for uri, want := range cases {
		assert.Equal(t, want, fileExtension(uri), uri)
	}
}

func TestDeleteLocalFileMissingIsQuiet(t *testing.T) {
	// Must not panic or error on an already-absent path.
	DeleteLocalFile(filepath.Join(t.TempDir(), "gone.m4a"), zerolog.Nop())
	DeleteLocalFile("", zerolog.Nop())
}
