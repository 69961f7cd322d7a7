package capture

import "orato/internal/domain"

// Default metering thresholds. Readings below the noise floor are treated as
// background noise and mapped to silence so only genuine speech drives the
// animation signal.
const (
	DefaultNoiseFloorDB   = -35.0
	DefaultLevelCeilingDB = -5.0
)

// NormalizeLevel maps a dBFS metering reading into [0,1]. Readings at or
// below floor yield 0; readings at or above ceiling yield 1; the range in
// between maps linearly.
func NormalizeLevel(dbfs, floor, ceiling float64) float64 {
	if ceiling <= floor {
		floor, ceiling = DefaultNoiseFloorDB, DefaultLevelCeilingDB
	}
	if dbfs < floor {
		return 0
	}
	level := (dbfs - floor) / (ceiling - floor)
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}

// Animate derives the cosmetic animation parameters for a normalized level.
func Animate(level float64) domain.AnimationParams {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	return domain.AnimationParams{
		Amplitude:   0.18 + level*1.7,
		Speed:       0.75 + level*0.2,
		Scale:       1 + level*0.12,
		GlowOpacity: 0.25 + level*0.75,
	}
}
