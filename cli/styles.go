package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/albanobattistella/eOVPN/common"
)

var (
	successColor = lipgloss.Color("#2EC27E")
	warningColor = lipgloss.Color("#E5A50A")
	errorColor   = lipgloss.Color("#E01B24")
	mutedColor   = lipgloss.Color("#626262")

	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

// stateStyle colours a session state for display.
func stateStyle(state common.SessionState) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch state {
	case common.StatusConnected:
		return style.Foreground(successColor)
	case common.StatusConnecting, common.StatusDisconnecting:
		return style.Foreground(warningColor)
	case common.StatusError:
		return style.Foreground(errorColor)
	default:
		return style.Foreground(mutedColor)
	}
}

func messageStyle(severity common.Severity) lipgloss.Style {
	switch severity {
	case common.SeveritySuccess:
		return lipgloss.NewStyle().Foreground(successColor)
	case common.SeverityWarning:
		return lipgloss.NewStyle().Foreground(warningColor)
	case common.SeverityError:
		return lipgloss.NewStyle().Foreground(errorColor)
	default:
		return lipgloss.NewStyle()
	}
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// lastUpdate renders the stored update timestamp with its age.
func lastUpdate(stamp string, now time.Time) string {
	if stamp == "" {
		return "never"
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", stamp, time.Local)
	if err != nil {
		return stamp
	}
	return fmt.Sprintf("%s (%s ago)", stamp, formatDuration(now.Sub(t)))
}
