// Package common provides shared constants, types, utilities, and interfaces
// used throughout eOVPN.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: timeouts, poll intervals, file names and external program names
//   - Errors: Sentinel errors and their mapping to short user-facing messages
//   - Interfaces: The Observer event surface and shared session/config types
//   - Logger: Levelled logging with optional rotated file output
//   - Utils: Path helpers for the configuration directory
//
// # Usage
//
//	// Use constants
//	timeout := common.ConnectionTimeout
//
//	// Use logger
//	common.LogInfo("Connecting with %s", configPath)
//
//	// Check errors
//	if errors.Is(err, common.ErrTimeout) {
//	    // The tunnel may still be negotiating
//	}
package common
