// Package notify talks to the desktop notification daemon over the session
// bus. It provides the two operator affordances the recorder needs: a
// blocking yes/no confirmation and a clickable "stop recording" action.
package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/bryanchriswhite/screenrec/internal/logger"
)

// Notification daemon D-Bus constants
const (
	notifyService = "org.freedesktop.Notifications"
	notifyPath    = "/org/freedesktop/Notifications"
	notifyIface   = "org.freedesktop.Notifications"

	appName = "screenrec"
)

// Notifier is a client of the session notification daemon.
type Notifier struct {
	conn *dbus.Conn
}

// New connects to the session bus and subscribes to notification action
// signals. Failure means the dialog collaborator is absent.
func New() (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(notifyPath),
		dbus.WithMatchInterface(notifyIface),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to notification signals: %w", err)
	}

	return &Notifier{conn: conn}, nil
}

// Close disconnects from the session bus.
func (n *Notifier) Close() error {
	return n.conn.Close()
}

// notify posts a notification and returns its daemon-assigned ID. A zero
// expiry keeps the notification up until acted upon.
func (n *Notifier) notify(summary, body string, actions []string, resident bool) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(1)),
	}
	if resident {
		hints["resident"] = dbus.MakeVariant(true)
	}

	obj := n.conn.Object(notifyService, notifyPath)
	call := obj.Call(notifyIface+".Notify", 0,
		appName, uint32(0), "", summary, body, actions, hints, int32(0))

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("post notification: %w", err)
	}
	return id, nil
}

// closeNotification asks the daemon to withdraw a notification.
func (n *Notifier) closeNotification(id uint32) {
	n.conn.Object(notifyService, notifyPath).Call(
		notifyIface+".CloseNotification", 0, id)
}

// Confirm shows a yes/no notification and blocks until the operator answers
// or dismisses it. Dismissal counts as "no".
func (n *Notifier) Confirm(summary, body string) (bool, error) {
	log := logger.WithComponent("notify")

	signals := make(chan *dbus.Signal, 16)
	n.conn.Signal(signals)
	defer n.conn.RemoveSignal(signals)

	id, err := n.notify(summary, body, []string{"yes", "Yes", "no", "No"}, false)
	if err != nil {
		return false, err
	}

	for sig := range signals {
		switch sig.Name {
		case notifyIface + ".ActionInvoked":
			sid, action, ok := actionArgs(sig)
			if !ok || sid != id {
				continue
			}
			log.Debug().Str("action", action).Msg("confirmation answered")
			return action == "yes", nil
		case notifyIface + ".NotificationClosed":
			if sid, ok := closedArgs(sig); ok && sid == id {
				log.Debug().Msg("confirmation dismissed")
				return false, nil
			}
		}
	}
	return false, fmt.Errorf("session bus closed while waiting for confirmation")
}

// StopButton posts a persistent notification with a single "stop" action and
// returns a channel that is closed once the operator clicks it (or dismisses
// the notification, which would otherwise leave no way to stop). The
// returned cancel func withdraws the notification.
func (n *Notifier) StopButton(summary, body string) (<-chan struct{}, func(), error) {
	log := logger.WithComponent("notify")

	signals := make(chan *dbus.Signal, 16)
	n.conn.Signal(signals)

	id, err := n.notify(summary, body, []string{"stop", "Stop recording"}, true)
	if err != nil {
		n.conn.RemoveSignal(signals)
		return nil, nil, err
	}

	clicked := make(chan struct{})
	go func() {
		defer n.conn.RemoveSignal(signals)
		for sig := range signals {
			switch sig.Name {
			case notifyIface + ".ActionInvoked":
				sid, action, ok := actionArgs(sig)
				if ok && sid == id && action == "stop" {
					log.Debug().Msg("stop action clicked")
					close(clicked)
					return
				}
			case notifyIface + ".NotificationClosed":
				if sid, ok := closedArgs(sig); ok && sid == id {
					log.Debug().Msg("stop notification dismissed, treating as stop")
					close(clicked)
					return
				}
			}
		}
	}()

	cancel := func() { n.closeNotification(id) }
	return clicked, cancel, nil
}

func actionArgs(sig *dbus.Signal) (uint32, string, bool) {
	if len(sig.Body) != 2 {
		return 0, "", false
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return 0, "", false
	}
	action, ok := sig.Body[1].(string)
	if !ok {
		return 0, "", false
	}
	return id, action, true
}

func closedArgs(sig *dbus.Signal) (uint32, bool) {
	if len(sig.Body) < 1 {
		return 0, false
	}
	id, ok := sig.Body[0].(uint32)
	return id, ok
}
