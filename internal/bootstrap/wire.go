// Package bootstrap assembles the runtime dependency graph.
package bootstrap

import (
	"orato/internal/audio"
	"orato/internal/auth"
	"orato/internal/config"
	"orato/internal/log"
	"orato/internal/ports"
	"orato/internal/providers/backend"
	"orato/internal/providers/realtime"
	"orato/internal/upload"
	"orato/internal/usecase"
	"orato/internal/watch"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Watcher    *watch.Watcher
	Session    *auth.Session
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(events ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	log.Configure(log.Config{Level: cfg.Log.Level})

	session := auth.NewSession(cfg.Auth.AccessToken, cfg.Auth.UserID)

	api := backend.NewClient(cfg.API.BaseURL, cfg.API.RequestTimeout, session, log.WithComponent("api"))
	store := backend.NewPresignedStore(cfg.API.RequestTimeout)
	uploader := upload.NewUploader(api, store, log.WithComponent("upload"))

	feed := realtime.NewFeed(realtime.Config{
		URL:               cfg.Realtime.URL,
		DialTimeout:       cfg.Realtime.DialTimeout,
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
	}, session, log.WithComponent("realtime"))
	watcher := watch.NewWatcher(feed, api, log.WithComponent("watch"))

	recorder := audio.NewRecorder(cfg.Audio.Backend, cfg.Audio.RecorderCommand)

	controller := usecase.NewSessionController(
		recorder,
		uploader,
		watcher,
		audio.SystemPermission{},
		session,
		events,
		usecase.Config{
			Capture: ports.CaptureConfig{
				SampleRate:    cfg.Audio.SampleRate,
				Channels:      cfg.Audio.Channels,
				InputFormat:   cfg.Audio.InputFormat,
				InputDevice:   cfg.Audio.InputDevice,
				OutputDir:     cfg.Audio.OutputDir,
				FileExtension: cfg.Audio.FileExtension,
			},
			CountdownSeconds:    cfg.Session.CountdownSeconds,
			MaxRecordingSeconds: cfg.Session.MaxRecordingSeconds,
			MinRecordingSeconds: cfg.Session.MinRecordingSeconds,
			NoiseFloorDB:        cfg.Session.NoiseFloorDB,
			LevelCeilingDB:      cfg.Session.LevelCeilingDB,
			MeterInterval:       cfg.Session.MeterInterval,
		},
		log.WithComponent("session"),
	)

	return Services{Controller: controller, Watcher: watcher, Session: session, Config: cfg}, nil
}
