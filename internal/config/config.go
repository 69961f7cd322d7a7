package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores runtime configuration for the recording pipeline.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	API      APIConfig      `mapstructure:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Session  SessionConfig  `mapstructure:"session"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type RealtimeConfig struct {
	URL               string        `mapstructure:"url"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type AuthConfig struct {
	AccessToken string `mapstructure:"access_token"`
	UserID      string `mapstructure:"user_id"`
}

type AudioConfig struct {
	Backend         string `mapstructure:"backend"`
	RecorderCommand string `mapstructure:"recorder_command"`
	InputFormat     string `mapstructure:"input_format"`
	InputDevice     string `mapstructure:"input_device"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Channels        int    `mapstructure:"channels"`
	OutputDir       string `mapstructure:"output_dir"`
	FileExtension   string `mapstructure:"file_extension"`
}

type SessionConfig struct {
	CountdownSeconds    int           `mapstructure:"countdown_seconds"`
	MaxRecordingSeconds int           `mapstructure:"max_recording_seconds"`
	MinRecordingSeconds int           `mapstructure:"min_recording_seconds"`
	NoiseFloorDB        float64       `mapstructure:"noise_floor_db"`
	LevelCeilingDB      float64       `mapstructure:"level_ceiling_db"`
	MeterInterval       time.Duration `mapstructure:"meter_interval"`
}

// Load resolves configuration from an optional orato.yaml, ORATO_* environment
// variables and defaults, in that order of increasing precedence for env.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("orato")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "orato"))
	}
	v.SetEnvPrefix("ORATO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	normalize(&cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("api.base_url", "https://api.orato.app")
	v.SetDefault("api.request_timeout", 30*time.Second)

	v.SetDefault("realtime.url", "wss://realtime.orato.app/ws")
	v.SetDefault("realtime.dial_timeout", 10*time.Second)
	v.SetDefault("realtime.heartbeat_interval", 30*time.Second)

	v.SetDefault("audio.backend", "auto")
	v.SetDefault("audio.recorder_command", "ffmpeg")
	v.SetDefault("audio.input_format", defaultInputFormat())
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.output_dir", os.TempDir())
	v.SetDefault("audio.file_extension", "m4a")

	v.SetDefault("session.countdown_seconds", 3)
	v.SetDefault("session.max_recording_seconds", 600)
	v.SetDefault("session.min_recording_seconds", 20)
	v.SetDefault("session.noise_floor_db", -35.0)
	v.SetDefault("session.level_ceiling_db", -5.0)
	v.SetDefault("session.meter_interval", 50*time.Millisecond)
}

func normalize(cfg *Config) {
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 44100
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.OutputDir == "" {
		cfg.Audio.OutputDir = os.TempDir()
	}
	if cfg.Audio.FileExtension == "" {
		cfg.Audio.FileExtension = "m4a"
	}
	if cfg.Session.CountdownSeconds <= 0 {
		cfg.Session.CountdownSeconds = 3
	}
	if cfg.Session.MaxRecordingSeconds <= 0 {
		cfg.Session.MaxRecordingSeconds = 600
	}
	if cfg.Session.MinRecordingSeconds < 0 {
		cfg.Session.MinRecordingSeconds = 20
	}
	if cfg.Session.MeterInterval <= 0 {
		cfg.Session.MeterInterval = 50 * time.Millisecond
	}
	if cfg.Session.NoiseFloorDB >= cfg.Session.LevelCeilingDB {
		cfg.Session.NoiseFloorDB = -35.0
		cfg.Session.LevelCeilingDB = -5.0
	}
	if cfg.API.RequestTimeout <= 0 {
		cfg.API.RequestTimeout = 30 * time.Second
	}
	if cfg.Realtime.HeartbeatInterval <= 0 {
		cfg.Realtime.HeartbeatInterval = 30 * time.Second
	}
}

func defaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

