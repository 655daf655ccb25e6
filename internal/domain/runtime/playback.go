package runtime

import "time"

type PlaybackStatus string

const (
	StatusPlaying PlaybackStatus = "playing"
	StatusPaused  PlaybackStatus = "paused"
)

// PlaybackState - последнее закоммиченное состояние плеера комнаты.
// Для playing эффективная позиция в момент T равна Position + (T - UpdatedAt),
// для paused она постоянна.
type PlaybackState struct {
	Status    PlaybackStatus
	Position  float64
	UpdatedAt time.Time
}

func NewPlaybackState(now time.Time) PlaybackState {
	return PlaybackState{Status: StatusPaused, Position: 0, UpdatedAt: now}
}

// EffectivePosition возвращает позицию в секундах на момент now
func (p PlaybackState) EffectivePosition(now time.Time) float64 {
	if p.Status != StatusPlaying {
		return p.Position
	}

	elapsed := now.Sub(p.UpdatedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	return p.Position + elapsed.Seconds()
}

func (p PlaybackState) Play(now time.Time) PlaybackState {
	return PlaybackState{Status: StatusPlaying, Position: p.EffectivePosition(now), UpdatedAt: now}
}

func (p PlaybackState) Pause(now time.Time) PlaybackState {
	return PlaybackState{Status: StatusPaused, Position: p.EffectivePosition(now), UpdatedAt: now}
}

// Seek меняет позицию, статус остается прежним
func (p PlaybackState) Seek(position float64, now time.Time) PlaybackState {
	return PlaybackState{Status: p.Status, Position: position, UpdatedAt: now}
}
