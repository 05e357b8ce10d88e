// Package notify shows session events as desktop notifications through the
// org.freedesktop.Notifications D-Bus service.
package notify

import (
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/albanobattistella/eOVPN/common"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyCall = busName + ".Notify"
)

// Urgency levels defined by the notification specification.
const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// busObject is the part of dbus.BusObject the notifier calls.
type busObject interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Notifier is a common.Observer that turns messages into notifications.
// Without a session bus it only logs.
type Notifier struct {
	mu      sync.Mutex
	enabled bool
	conn    *dbus.Conn
	obj     busObject
	lastID  uint32
}

// New connects to the session bus. A missing bus is not an error: the
// notifier then degrades to logging.
func New(enabled bool) *Notifier {
	n := &Notifier{enabled: enabled}
	if !enabled {
		return n
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		common.LogWarn("Desktop notifications unavailable: %v", err)
		return n
	}
	n.conn = conn
	n.obj = conn.Object(busName, objectPath)
	return n
}

// Close releases the bus connection.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.obj = nil
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}

// StatusChanged implements common.Observer. State changes are announced
// through Message, so nothing is shown here.
func (n *Notifier) StatusChanged(state common.SessionState) {
	common.LogDebug("Notifier: state %s", state)
}

// Message implements common.Observer.
func (n *Notifier) Message(severity common.Severity, text string) {
	if !n.enabled {
		return
	}
	if err := n.show(severity, text); err != nil {
		common.LogWarn("Notification %q not shown: %v", text, err)
	}
}

// ConfigListChanged implements common.Observer.
func (n *Notifier) ConfigListChanged([]common.ConfigEntry) {}

func (n *Notifier) show(severity common.Severity, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.obj == nil {
		common.LogInfo("[%s] %s", severity, text)
		return nil
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgencyFor(severity)),
	}
	// Reusing the previous id replaces the last bubble instead of stacking.
	call := n.obj.Call(notifyCall, 0,
		common.AppName,
		n.lastID,
		iconFor(severity),
		common.AppName,
		text,
		[]string{},
		hints,
		int32(-1),
	)

	var id uint32
	if err := call.Store(&id); err != nil {
		return err
	}
	n.lastID = id
	return nil
}

func iconFor(severity common.Severity) string {
	switch severity {
	case common.SeverityWarning:
		return "dialog-warning"
	case common.SeverityError:
		return "network-vpn-error"
	case common.SeveritySuccess:
		return "network-vpn"
	default:
		return "network-vpn-acquiring"
	}
}

func urgencyFor(severity common.Severity) byte {
	switch severity {
	case common.SeverityError:
		return urgencyCritical
	case common.SeverityWarning:
		return urgencyNormal
	default:
		return urgencyLow
	}
}
