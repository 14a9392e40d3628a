// Package notify provides desktop notifications via D-Bus.
package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/llehouerou/murmur/internal/decoder"
)

// Urgency represents notification priority levels per freedesktop spec.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// nowPlayingTimeout is how long a now-playing notification stays up.
const nowPlayingTimeout = 4000

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string  // Summary text (required)
	Body       string  // Body text (optional, supports basic markup)
	Icon       string  // Path to image file or icon name (optional)
	Timeout    int32   // ms, -1 = server default, 0 = never expire
	ReplacesID uint32  // 0 = new notification, >0 = replace existing
	Urgency    Urgency // Low, Normal, Critical
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends a notification and returns its ID.
	// Returns 0 and nil error if notifications are disabled or unavailable.
	Notify(n Notification) (uint32, error)
	// Close closes a notification by ID.
	Close(id uint32) error
}

// NowPlaying builds the notification shown when a track starts. replaces is
// the ID of the previous now-playing notification, if any.
func NowPlaying(info *decoder.Info, duration time.Duration, replaces uint32) Notification {
	n := Notification{
		Title:      "Now playing",
		Timeout:    nowPlayingTimeout,
		ReplacesID: replaces,
		Urgency:    UrgencyLow,
		Icon:       "audio-x-generic",
	}
	if info == nil {
		return n
	}

	if info.Title != "" {
		n.Title = info.Title
	}
	var body []string
	if info.Artist != "" {
		body = append(body, info.Artist)
	}
	if info.Album != "" {
		body = append(body, info.Album)
	}
	if duration > 0 {
		body = append(body, duration.Round(time.Second).String())
	}
	n.Body = strings.Join(body, " · ")
	if art := albumArtPath(info.Path); art != "" {
		n.Icon = art
	}
	return n
}

// Mock records notifications instead of sending them.
type Mock struct {
	mu     sync.Mutex
	sent   []Notification
	closed []uint32
	nextID uint32
}

// Notify records n and returns a new ID, or n.ReplacesID when set.
func (m *Mock) Notify(n Notification) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	if n.ReplacesID != 0 {
		return n.ReplacesID, nil
	}
	m.nextID++
	return m.nextID, nil
}

// Close records the closed ID.
func (m *Mock) Close(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, id)
	return nil
}

// Sent returns the recorded notifications.
func (m *Mock) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.sent...)
}

var _ Notifier = (*Mock)(nil)
