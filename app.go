package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"orato/internal/bootstrap"
	"orato/internal/config"
	"orato/internal/domain"
	"orato/internal/usecase"
)

const (
	eventPhase     = "orato:phase"
	eventCountdown = "orato:countdown"
	eventTick      = "orato:tick"
	eventLevel     = "orato:level"
	eventOutcome   = "orato:outcome"
	eventError     = "orato:error"
)

// App is the Wails application root. It implements ports.EventSink; emitted
// events are the navigation boundary the frontend screens react to.
type App struct {
	ctx context.Context

	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.PhaseChanged(domain.PhaseIdle, domain.ReasonScreenEntered)
}

func (a *App) shutdown(ctx context.Context) {
	if a.controller != nil {
		a.controller.Close()
	}
}

// StartSession begins a recording attempt: countdown, then capture.
func (a *App) StartSession() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// StopSession ends capture and lets the pipeline run to its outcome event.
func (a *App) StopSession() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Stop(a.ctx)
}

// CancelSession discards an in-progress attempt.
func (a *App) CancelSession() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Cancel(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{Phase: domain.PhaseIdle, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{Phase: domain.PhaseIdle, Active: false}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"apiBaseUrl":   a.cfg.API.BaseURL,
		"audioBackend": a.cfg.Audio.Backend,
		"audioInput":   a.cfg.Audio.InputDevice,
		"maxRecording": usecase.FormatTime(a.cfg.Session.MaxRecordingSeconds),
		"minRecording": usecase.FormatTime(a.cfg.Session.MinRecordingSeconds),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// PhaseChanged emits pipeline phase transitions to the frontend.
func (a *App) PhaseChanged(phase domain.Phase, reason domain.PhaseReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPhase, map[string]string{
		"phase":  string(phase),
		"reason": string(reason),
	})
}

// CountdownTick emits the pre-roll count for display.
func (a *App) CountdownTick(count int) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCountdown, map[string]int{"count": count})
}

// Tick emits the per-second recording timer update.
func (a *App) Tick(remainingSeconds, durationSeconds int, formatted string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTick, map[string]any{
		"remaining": remainingSeconds,
		"duration":  durationSeconds,
		"formatted": formatted,
	})
}

// AudioLevel emits the live metering level and its animation parameters.
func (a *App) AudioLevel(level float64, anim domain.AnimationParams) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventLevel, map[string]any{
		"level":     level,
		"animation": anim,
	})
}

// Outcome emits the terminal navigation payload: feedback or error screen.
func (a *App) Outcome(outcome domain.Outcome) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventOutcome, outcome)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Microphone access is required. Enable it in system settings."
	case domain.ErrorCodeCaptureStart:
		return "Could not start recording"
	case domain.ErrorCodeCaptureStop:
		return "Could not save the recording"
	case domain.ErrorCodeUpload:
		return "Upload failed"
	case domain.ErrorCodeWatch:
		return "Lost connection to the processing service"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
