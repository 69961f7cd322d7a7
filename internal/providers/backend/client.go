// Package backend implements the authenticated HTTP client for the Orato
// API: presigned upload slots and one-shot processing status reads.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orato/internal/domain"
	"orato/internal/ports"
)

// Client calls the Orato API. Every request carries the bearer token from the
// token source and a correlation id.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  ports.TokenSource
	logger  zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, tokens ports.TokenSource, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
	}
}

type uploadURLRequest struct {
	MimeType      string `json:"mimeType"`
	FileExtension string `json:"fileExtension"`
}

// CreateUploadURL requests a presigned upload slot for one recording.
func (c *Client) CreateUploadURL(ctx context.Context, mimeType, fileExtension string) (domain.UploadTicket, error) {
	var ticket domain.UploadTicket
	status, err := c.do(ctx, http.MethodPost, "/v1/audio/upload-url", uploadURLRequest{
		MimeType:      mimeType,
		FileExtension: fileExtension,
	}, &ticket)
	if err != nil {
		return domain.UploadTicket{}, err
	}
	if status < 200 || status >= 300 {
		return domain.UploadTicket{}, fmt.Errorf("upload-url request returned status %d", status)
	}
	if ticket.AudioID == "" || ticket.UploadURL == "" {
		return domain.UploadTicket{}, fmt.Errorf("upload-url response missing audio id or url")
	}
	return ticket, nil
}

// FetchStatus reads the current processing row for an audio id.
func (c *Client) FetchStatus(ctx context.Context, audioID string) (domain.ProcessingUpdate, error) {
	var update domain.ProcessingUpdate
	path := "/v1/audio/" + url.PathEscape(audioID) + "/processing"
	status, err := c.do(ctx, http.MethodGet, path, nil, &update)
	if err != nil {
		return domain.ProcessingUpdate{}, err
	}
	if status < 200 || status >= 300 {
		return domain.ProcessingUpdate{}, fmt.Errorf("processing status request returned status %d", status)
	}
	if update.AudioID == "" {
		update.AudioID = audioID
	}
	return update, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	if c.baseURL == "" {
		return 0, fmt.Errorf("API base URL is not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolving access token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		c.logger.Warn().Str("path", path).Msg("no active session, request may be unauthorized")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api request")

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response body: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// PresignedStore uploads raw bytes straight to storage using a presigned URL.
// No bearer token is attached; the URL itself carries the credentials.
type PresignedStore struct {
	httpc *http.Client
}

func NewPresignedStore(timeout time.Duration) *PresignedStore {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PresignedStore{httpc: &http.Client{Timeout: timeout}}
}

func (s *PresignedStore) Put(ctx context.Context, uploadURL, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("storage upload returned status %d", resp.StatusCode)
	}
	return nil
}
