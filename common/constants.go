// Package common provides shared constants, types, and utilities
// used across eOVPN.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.github.eovpn"
	// AppName is the display name of the application.
	AppName = "eOVPN"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "eovpn"
)

// File names used by the application.
const (
	ConfigFileName      = "config.yaml"
	CredentialsFileName = ".credentials"
	AuthFileName        = "auth.txt"
	SessionLogFileName  = "session.log"
	LogFileName         = "eovpn.log"
	ConfigsDirName      = "configs"
)

// Default timeouts and intervals.
const (
	// ConnectionTimeout is the maximum time to wait for the tunnel to come up or go down.
	ConnectionTimeout = 120 * time.Second
	// PollInterval is how often the interface state is checked while connecting or disconnecting.
	PollInterval = 1 * time.Second
	// MonitorInterval is how often the background monitor reconciles state.
	MonitorInterval = 5 * time.Second
	// FetchTimeout bounds a remote archive download.
	FetchTimeout = 360 * time.Second
	// LauncherWaitDelay bounds output collection after the launcher exits.
	LauncherWaitDelay = 2 * time.Second
	// WatchDebounce coalesces bursts of directory events.
	WatchDebounce = 250 * time.Millisecond
)

// External programs.
const (
	DefaultOpenVPNBinary     = "openvpn"
	DefaultEscalationCommand = "pkexec"
	DefaultKillCommand       = "killall"
	DefaultProcessCheck      = "pgrep"
	DefaultTunnelPrefix      = "tun"
)

// Archive limits.
const (
	// MaxArchiveSize caps the downloaded archive body.
	MaxArchiveSize = 64 << 20
	// MaxEntrySize caps a single decompressed entry.
	MaxEntrySize = 8 << 20
)
