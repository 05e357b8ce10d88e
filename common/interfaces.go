// Package common provides shared constants, types, and utilities
// used across eOVPN.
package common

// SessionState represents the state of the tunnel session.
type SessionState int

const (
	StatusDisconnected SessionState = iota
	StatusConnecting
	StatusConnected
	StatusDisconnecting
	StatusError
)

// String returns a human-readable status string.
func (s SessionState) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnecting:
		return "Disconnecting..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Severity classifies a message sent to an Observer.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// EntryKind tells configuration files apart from certificates.
type EntryKind int

const (
	KindConfig EntryKind = iota
	KindCertificate
)

// String returns the entry kind name.
func (k EntryKind) String() string {
	if k == KindCertificate {
		return "certificate"
	}
	return "config"
}

// ConfigEntry is a file in the configuration directory or a remote archive.
type ConfigEntry struct {
	FileName string    `json:"file_name" yaml:"file_name"`
	Kind     EntryKind `json:"kind" yaml:"kind"`
}

// Observer receives session and configuration events.
// Implementations must not block; presentation happens elsewhere.
type Observer interface {
	// StatusChanged is called after every session state transition.
	StatusChanged(state SessionState)
	// Message reports a terminal outcome or notable event.
	Message(severity Severity, text string)
	// ConfigListChanged is called with a fresh, sorted listing.
	ConfigListChanged(entries []ConfigEntry)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) StatusChanged(SessionState) {}
func (NopObserver) Message(Severity, string) {}
func (NopObserver) ConfigListChanged([]ConfigEntry) {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) StatusChanged(state SessionState) {
	for _, o := range m {
		o.StatusChanged(state)
	}
}

func (m MultiObserver) Message(severity Severity, text string) {
	for _, o := range m {
		o.Message(severity, text)
	}
}

func (m MultiObserver) ConfigListChanged(entries []ConfigEntry) {
	for _, o := range m {
		o.ConfigListChanged(entries)
	}
}

// LogObserver writes every event to the application logger.
type LogObserver struct{}

func (LogObserver) StatusChanged(state SessionState) {
	LogInfo("Session state: %s", state)
}

func (LogObserver) Message(severity Severity, text string) {
	switch severity {
	case SeverityError:
		LogError("%s", text)
	case SeverityWarning:
		LogWarn("%s", text)
	default:
		LogInfo("%s", text)
	}
}

func (LogObserver) ConfigListChanged(entries []ConfigEntry) {
	LogDebug("Config list changed: %d entries", len(entries))
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}
