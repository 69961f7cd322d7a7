// Package realtime implements the websocket change feed for processing
// status updates: one subscription per audio id, filtered server-side.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"orato/internal/domain"
	"orato/internal/ports"
)

// Config controls the realtime websocket connection.
type Config struct {
	URL               string
	DialTimeout       time.Duration
	HeartbeatInterval time.Duration
}

// Feed implements ports.StatusFeed over a websocket change feed.
type Feed struct {
	cfg    Config
	tokens ports.TokenSource
	logger zerolog.Logger
}

func NewFeed(cfg Config, tokens ports.TokenSource, logger zerolog.Logger) *Feed {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Feed{cfg: cfg, tokens: tokens, logger: logger}
}

type frame struct {
	Type    string                  `json:"type"`
	Topic   string                  `json:"topic,omitempty"`
	Table   string                  `json:"table,omitempty"`
	Filter  string                  `json:"filter,omitempty"`
	Message string                  `json:"message,omitempty"`
	Record  *domain.ProcessingUpdate `json:"record,omitempty"`
}

// Subscribe opens the feed for one audio id. Dialing retries with bounded
// exponential backoff; once established, any channel failure surfaces through
// the subscription's Err, never as a retry.
func (f *Feed) Subscribe(ctx context.Context, audioID string) (ports.StatusSubscription, error) {
	if strings.TrimSpace(f.cfg.URL) == "" {
		return nil, errors.New("realtime URL is not configured")
	}
	if audioID == "" {
		return nil, errors.New("audio id is required")
	}

	headers := http.Header{}
	if token, err := f.tokens.Token(ctx); err == nil && token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.DialTimeout}
	var conn *websocket.Conn
	dial := func() error {
		var err error
		conn, _, err = dialer.DialContext(ctx, f.cfg.URL, headers)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(dial, policy); err != nil {
		return nil, fmt.Errorf("connecting to realtime feed: %w", err)
	}

	join := frame{
		Type:   "subscribe",
		Topic:  "processing:" + audioID,
		Table:  "audio_processing",
		Filter: "audio_id=eq." + audioID,
	}
	if err := conn.WriteJSON(join); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribing to processing updates: %w", err)
	}

	sub := &subscription{
		conn:    conn,
		audioID: audioID,
		updates: make(chan domain.ProcessingUpdate, 16),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
		logger:  f.logger.With().Str("audio_id", audioID).Logger(),
	}

	sub.wg.Add(2)
	go sub.readLoop()
	go sub.heartbeatLoop(f.cfg.HeartbeatInterval)
	go func() {
		sub.wg.Wait()
		close(sub.updates)
		close(sub.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return sub, nil
}

type subscription struct {
	conn    *websocket.Conn
	audioID string
	logger  zerolog.Logger

	updates chan domain.ProcessingUpdate
	done    chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	writeMu   sync.Mutex
	closeOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
}

// signalStop ends the heartbeat loop once reading is over.
func (s *subscription) signalStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *subscription) Updates() <-chan domain.ProcessingUpdate {
	return s.updates
}

func (s *subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return s.Err()
}

func (s *subscription) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *subscription) readLoop() {
	defer s.wg.Done()
	defer s.signalStop()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(err)
			return
		}

		var msg frame
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Debug().Msg("discarding malformed realtime frame")
			continue
		}

		switch strings.ToLower(msg.Type) {
		case "update":
			if msg.Record == nil || msg.Record.AudioID != s.audioID {
				continue
			}
			select {
			case s.updates <- *msg.Record:
			default:
				s.logger.Warn().Msg("realtime update dropped, consumer is behind")
			}
		case "error":
			message := strings.TrimSpace(msg.Message)
			if message == "" {
				message = "realtime channel reported an unknown error"
			}
			s.setErr(errors.New(message))
			return
		default:
			// subscribed acks and heartbeat echoes carry no data
		}
	}
}

func (s *subscription) heartbeatLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		s.writeMu.Lock()
		err := s.conn.WriteJSON(frame{Type: "heartbeat"})
		s.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}
