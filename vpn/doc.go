// Package vpn provides the tunnel session core for eOVPN.
//
// The package is organized around a few small types:
//
//   - Runner / ExecRunner: runs openvpn and killall, escalating through
//     pkexec for privileged calls
//   - Prober / InterfaceProber: reports whether a tun* interface is up
//   - SessionController: the connect/disconnect state machine
//   - Monitor: background reconciliation of cached and live state
//
// # Connection Flow
//
//  1. The caller builds a ConnectionRequest and calls Connect (or ConnectAsync)
//  2. The controller launches "pkexec openvpn ... --daemon" and waits for the
//     launcher to exit
//  3. The prober is polled once per PollInterval until the tunnel interface
//     is up or the timeout elapses
//  4. The terminal outcome is returned and reported to the Observer
//
// A timed-out connect leaves the daemonized openvpn running. Callers that
// want it gone issue Disconnect, which runs "pkexec killall openvpn".
//
// # Thread Safety
//
// SessionController is safe for concurrent use. Only one connect or
// disconnect runs at a time; overlapping calls fail fast with ErrBusy.
package vpn
