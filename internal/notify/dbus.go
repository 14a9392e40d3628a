//go:build linux

package notify

import (
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	notifyDest      = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyInterface = "org.freedesktop.Notifications"

	appName = "murmur"
)

type dbusNotifier struct {
	obj dbus.BusObject
}

// New creates a Notifier backed by the session bus. Without a session bus it
// returns a notifier that does nothing.
func New() (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		log.Debug().Err(err).Msg("No session bus, notifications disabled")
		return stubNotifier{}, nil //nolint:nilerr // notifications are optional
	}
	return &dbusNotifier{obj: conn.Object(notifyDest, notifyPath)}, nil
}

// Notify calls Notify(app_name, replaces_id, app_icon, summary, body,
// actions, hints, expire_timeout) and returns the notification ID.
func (n *dbusNotifier) Notify(notif Notification) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(notif.Urgency)),
		"desktop-entry": dbus.MakeVariant(appName),
	}

	call := n.obj.Call(notifyInterface+".Notify", 0,
		appName,
		notif.ReplacesID,
		notif.Icon,
		notif.Title,
		notif.Body,
		[]string{},
		hints,
		notif.Timeout,
	)
	if call.Err != nil {
		return 0, call.Err
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Close closes a notification by ID.
func (n *dbusNotifier) Close(id uint32) error {
	return n.obj.Call(notifyInterface+".CloseNotification", 0, id).Err
}

type stubNotifier struct{}

func (stubNotifier) Notify(Notification) (uint32, error) { return 0, nil }

func (stubNotifier) Close(uint32) error { return nil }
