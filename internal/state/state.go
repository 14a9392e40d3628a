// Package state persists player state (volume and last session) in SQLite.
package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName      = "murmur"
	dbFileName   = "murmur.db"
	saveDebounce = 500 * time.Millisecond
)

type Manager struct {
	db        *sql.DB
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   *SessionState
}

// Open opens the state database in the XDG data directory.
func Open() (*Manager, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens the state database at dbPath, creating it if needed.
func OpenPath(dbPath string) (*Manager, error) {
	// Ensure directory exists
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db}, nil
}

func (m *Manager) Close() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.pending
	m.pending = nil
	m.saveMu.Unlock()

	// Flush pending state
	if pending != nil {
		if err := saveSession(m.db, *pending); err != nil {
			log.Warn().Err(err).Msg("Flush session state")
		}
	}

	return m.db.Close()
}

// GetSession returns the last saved session, or nil if none was saved.
func (m *Manager) GetSession() (*SessionState, error) {
	return getSession(m.db)
}

// SaveSession records the current session. Writes are debounced so that
// frequent progress updates produce one database write.
func (m *Manager) SaveSession(state SessionState) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending = &state

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		m.saveMu.Lock()
		pending := m.pending
		m.pending = nil
		m.saveMu.Unlock()

		if pending != nil {
			if err := saveSession(m.db, *pending); err != nil {
				log.Warn().Err(err).Msg("Save session state")
			}
		}
	})
}

// GetVolume returns the saved volume, or unity gain if none was saved.
func (m *Manager) GetVolume() (*VolumeState, error) {
	v, err := getVolume(m.db)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SaveVolume persists the volume immediately.
func (m *Manager) SaveVolume(volume float64, muted bool) error {
	return saveVolume(m.db, VolumeState{Volume: volume, Muted: muted})
}

func getDBPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
