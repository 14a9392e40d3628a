package state

import (
	"database/sql"
	"errors"
	"math"
	"time"
)

// The player_state table holds a single row (id = 1). Volume and session
// columns are written independently so that saving one never resets the other.

// SessionState is what is needed to resume playback on the next start.
type SessionState struct {
	Path     string
	Position float64 // seconds
}

// VolumeState is the linear gain restored on start. When Muted is set,
// Volume is the level to go back to on unmute.
type VolumeState struct {
	Volume float64
	Muted  bool
}

var defaultVolume = VolumeState{Volume: 1}

func getSession(db *sql.DB) (*SessionState, error) {
	var s SessionState
	err := db.QueryRow(`SELECT last_path, last_position FROM player_state WHERE id = 1`).
		Scan(&s.Path, &s.Position)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	case s.Path == "":
		return nil, nil
	}
	return &s, nil
}

func saveSession(db *sql.DB, s SessionState) error {
	_, err := db.Exec(`
		INSERT INTO player_state (id, last_path, last_position, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_path = excluded.last_path,
			last_position = excluded.last_position,
			updated_at = excluded.updated_at
	`, s.Path, nonNegative(s.Position), time.Now().Unix())
	return err
}

func getVolume(db *sql.DB) (VolumeState, error) {
	v := defaultVolume
	err := db.QueryRow(`SELECT volume, muted FROM player_state WHERE id = 1`).
		Scan(&v.Volume, &v.Muted)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultVolume, nil
	}
	if err != nil {
		return VolumeState{}, err
	}
	v.Volume = nonNegative(v.Volume)
	return v, nil
}

func saveVolume(db *sql.DB, v VolumeState) error {
	_, err := db.Exec(`
		INSERT INTO player_state (id, volume, muted, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			volume = excluded.volume,
			muted = excluded.muted,
			updated_at = excluded.updated_at
	`, nonNegative(v.Volume), v.Muted, time.Now().Unix())
	return err
}

// nonNegative maps NaN and negative values to 0.
func nonNegative(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	return x
}
