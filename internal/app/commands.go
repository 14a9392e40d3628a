package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/murmur/internal/engine"
	"github.com/llehouerou/murmur/internal/notify"
)

const tickInterval = 100 * time.Millisecond

// TickCmd returns a command that sends TickMsg after tickInterval.
func TickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// WatchEvents returns a command that waits for the next controller event.
func WatchEvents(sub *engine.Subscription) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case e := <-sub.Events:
			return EngineEventMsg{Event: e}
		case <-sub.Done:
			return EventsClosedMsg{}
		}
	}
}

// NotifyCmd sends n in the background.
func NotifyCmd(n notify.Notifier, notif notify.Notification) tea.Cmd {
	return func() tea.Msg {
		id, err := n.Notify(notif)
		if err != nil {
			log.Debug().Err(err).Msg("Desktop notification failed")
			return nil
		}
		return NotifiedMsg{ID: id}
	}
}
