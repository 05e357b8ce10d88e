// Package vpn provides tunnel session management.
// This file contains the SessionController, which owns the
// connect/disconnect state machine.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/albanobattistella/eOVPN/common"
)

// Common errors - re-exported from common package for convenience.
var (
	ErrAlreadyConnected = common.ErrAlreadyConnected
	ErrBusy             = common.ErrBusy
	ErrLaunch           = common.ErrLaunch
	ErrTimeout          = common.ErrTimeout
	ErrInvalidRequest   = errors.New("invalid connection request")
)

// SessionState is the controller's view of the tunnel.
type SessionState = common.SessionState

// Session states, re-exported from common.
const (
	StatusDisconnected  = common.StatusDisconnected
	StatusConnecting    = common.StatusConnecting
	StatusConnected     = common.StatusConnected
	StatusDisconnecting = common.StatusDisconnecting
	StatusError         = common.StatusError
)

// Outcome is the terminal result of a connect or disconnect call.
type Outcome int

const (
	// OutcomeRejected means the call had no side effects.
	OutcomeRejected Outcome = iota
	OutcomeConnected
	OutcomeDisconnected
	// OutcomeTimedOut is ambiguous: the tunnel may still be negotiating.
	OutcomeTimedOut
	OutcomeLaunchFailed
	OutcomeCancelled
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "Rejected"
	case OutcomeConnected:
		return "Connected"
	case OutcomeDisconnected:
		return "Disconnected"
	case OutcomeTimedOut:
		return "TimedOut"
	case OutcomeLaunchFailed:
		return "LaunchFailed"
	case OutcomeCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ConnectionRequest describes one connect attempt.
type ConnectionRequest struct {
	ConfigPath   string
	AuthFilePath string
	// CACertPath is optional; --ca is only passed when set.
	CACertPath  string
	LogFilePath string
	// Timeout overrides the controller default when positive.
	Timeout time.Duration
}

// Args returns the openvpn arguments for the request.
func (r ConnectionRequest) Args() []string {
	args := []string{"--config", r.ConfigPath}
	if r.AuthFilePath != "" {
		args = append(args, "--auth-user-pass", r.AuthFilePath)
	}
	if r.CACertPath != "" {
		args = append(args, "--ca", r.CACertPath)
	}
	if r.LogFilePath != "" {
		args = append(args, "--log", r.LogFilePath)
	}
	return append(args, "--daemon")
}

func (r ConnectionRequest) validate() error {
	if r.ConfigPath == "" {
		return fmt.Errorf("%w: config path is required", ErrInvalidRequest)
	}
	return nil
}

// Result is delivered by the asynchronous operations.
type Result struct {
	Outcome   Outcome
	AttemptID string
	Err       error
}

// Options configures a SessionController.
type Options struct {
	// Binary is the openvpn executable.
	Binary string
	// KillCommand terminates tunnel processes by name.
	KillCommand string
	// ProcessCheck exits 0 when a process with the given name is running.
	ProcessCheck string
	// PollInterval is the delay between prober checks.
	PollInterval time.Duration
	// Timeout is the default connect/disconnect deadline.
	Timeout time.Duration
	// Observer receives state changes and messages.
	Observer common.Observer
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Binary:       common.DefaultOpenVPNBinary,
		KillCommand:  common.DefaultKillCommand,
		ProcessCheck: common.DefaultProcessCheck,
		PollInterval: common.PollInterval,
		Timeout:      common.ConnectionTimeout,
		Observer:     common.LogObserver{},
	}
}

// SessionController owns the tunnel session state machine.
// At most one connect or disconnect runs at a time; a concurrent caller
// is rejected with ErrBusy instead of being queued.
type SessionController struct {
	runner Runner
	prober Prober
	opts   Options

	opMu sync.Mutex

	mu        sync.RWMutex
	state     SessionState
	attemptID string
}

// NewSessionController creates a controller in the Disconnected state.
// Zero-valued options fall back to DefaultOptions.
func NewSessionController(runner Runner, prober Prober, opts Options) *SessionController {
	defaults := DefaultOptions()
	if opts.Binary == "" {
		opts.Binary = defaults.Binary
	}
	if opts.KillCommand == "" {
		opts.KillCommand = defaults.KillCommand
	}
	if opts.ProcessCheck == "" {
		opts.ProcessCheck = defaults.ProcessCheck
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Observer == nil {
		opts.Observer = defaults.Observer
	}

	return &SessionController{
		runner: runner,
		prober: prober,
		opts:   opts,
		state:  StatusDisconnected,
	}
}

// Status returns the cached session state.
func (c *SessionController) Status() SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AttemptID returns the ID of the most recent connect or disconnect.
func (c *SessionController) AttemptID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attemptID
}

func (c *SessionController) setState(state SessionState) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed {
		c.opts.Observer.StatusChanged(state)
	}
}

func (c *SessionController) newAttempt() string {
	id := uuid.NewString()
	c.mu.Lock()
	c.attemptID = id
	c.mu.Unlock()
	return id
}

func (c *SessionController) timeoutFor(req ConnectionRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return c.opts.Timeout
}

// Connect launches the tunnel and waits for its interface to come up.
// On timeout the openvpn process is left running; call Disconnect to
// clean it up.
func (c *SessionController) Connect(ctx context.Context, req ConnectionRequest) (Outcome, error) {
	if !c.opMu.TryLock() {
		return OutcomeRejected, ErrBusy
	}
	defer c.opMu.Unlock()

	switch c.Status() {
	case StatusConnecting, StatusConnected, StatusDisconnecting:
		return OutcomeRejected, ErrAlreadyConnected
	}
	if err := req.validate(); err != nil {
		return OutcomeRejected, err
	}

	log := common.ForAttempt(c.newAttempt())
	timeout := c.timeoutFor(req)
	log.Info("Connecting with %s (timeout %v)", req.ConfigPath, timeout)

	c.setState(StatusConnecting)
	c.opts.Observer.Message(common.SeverityInfo, "Connecting..")

	res, err := c.runner.Run(ctx, true, c.opts.Binary, req.Args()...)
	if err == nil && res.ExitCode != 0 {
		err = fmt.Errorf("%w: %s exited with code %d: %s", ErrLaunch, c.opts.Binary, res.ExitCode, res.Output())
	}
	if err != nil {
		log.Error("Launch failed: %v", err)
		c.setState(StatusError)
		c.opts.Observer.Message(common.SeverityError, common.UserMessage(err))
		return OutcomeLaunchFailed, err
	}

	if err := c.waitFor(ctx, true, timeout); err != nil {
		c.setState(StatusError)
		if errors.Is(err, ErrTimeout) {
			log.Warn("Tunnel not up after %v, leaving openvpn running", timeout)
			c.opts.Observer.Message(common.SeverityError, common.UserMessage(err))
			return OutcomeTimedOut, err
		}
		log.Warn("Connect wait aborted: %v", err)
		return OutcomeCancelled, err
	}

	log.Info("Tunnel is up")
	c.setState(StatusConnected)
	c.opts.Observer.Message(common.SeveritySuccess,
		fmt.Sprintf("Connected to %s.", filepath.Base(req.ConfigPath)))
	return OutcomeConnected, nil
}

// Disconnect terminates all tunnel processes and waits for the interface
// to go down. It is a no-op when already disconnected.
func (c *SessionController) Disconnect(ctx context.Context) (Outcome, error) {
	if !c.opMu.TryLock() {
		return OutcomeRejected, ErrBusy
	}
	defer c.opMu.Unlock()

	if c.Status() == StatusDisconnected {
		return OutcomeDisconnected, nil
	}

	log := common.ForAttempt(c.newAttempt())
	log.Info("Disconnecting")

	c.setState(StatusDisconnecting)
	c.opts.Observer.Message(common.SeverityInfo, "Disconnecting..")

	res, err := c.runner.Run(ctx, true, c.opts.KillCommand, filepath.Base(c.opts.Binary))
	if err != nil {
		log.Error("Could not run %s: %v", c.opts.KillCommand, err)
		c.setState(StatusError)
		c.opts.Observer.Message(common.SeverityError, common.UserMessage(err))
		return OutcomeLaunchFailed, err
	}
	if res.ExitCode != 0 {
		// killall exits 1 when nothing matched; the interface decides.
		log.Warn("%s exited with code %d: %s", c.opts.KillCommand, res.ExitCode, res.Output())
	}

	if err := c.waitFor(ctx, false, c.opts.Timeout); err != nil {
		c.setState(StatusError)
		if errors.Is(err, ErrTimeout) {
			log.Warn("Tunnel still up after %v", c.opts.Timeout)
			c.opts.Observer.Message(common.SeverityError, common.UserMessage(err))
			return OutcomeTimedOut, err
		}
		return OutcomeCancelled, err
	}

	log.Info("Tunnel is down")
	c.setState(StatusDisconnected)
	c.opts.Observer.Message(common.SeverityInfo, "Disconnected.")
	return OutcomeDisconnected, nil
}

// ConnectAsync runs Connect on its own goroutine and delivers exactly one
// Result on the returned channel.
func (c *SessionController) ConnectAsync(ctx context.Context, req ConnectionRequest) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		outcome, err := c.Connect(ctx, req)
		ch <- c.result(outcome, err)
	}()
	return ch
}

// DisconnectAsync runs Disconnect on its own goroutine and delivers exactly
// one Result on the returned channel.
func (c *SessionController) DisconnectAsync(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		outcome, err := c.Disconnect(ctx)
		ch <- c.result(outcome, err)
	}()
	return ch
}

func (c *SessionController) result(outcome Outcome, err error) Result {
	r := Result{Outcome: outcome, Err: err}
	if outcome != OutcomeRejected {
		r.AttemptID = c.AttemptID()
	}
	return r
}

// waitFor polls the prober until it reports want or timeout elapses.
// The first check happens immediately.
func (c *SessionController) waitFor(ctx context.Context, want bool, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if c.prober.IsTunnelUp() == want {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if c.prober.IsTunnelUp() == want {
				return nil
			}
			return ErrTimeout
		case <-ticker.C:
		}
	}
}

// Reconcile aligns the cached state with the live interface state when no
// operation is in flight. It returns the resulting state and whether it
// changed.
func (c *SessionController) Reconcile(up bool) (SessionState, bool) {
	if !c.opMu.TryLock() {
		return c.Status(), false
	}
	defer c.opMu.Unlock()

	current := c.Status()
	switch {
	case up && (current == StatusDisconnected || current == StatusError):
		common.LogInfo("Tunnel interface is up outside a connect call")
		c.setState(StatusConnected)
		return StatusConnected, true
	case !up && current == StatusConnected:
		common.LogWarn("Tunnel interface went down")
		c.setState(StatusError)
		c.opts.Observer.Message(common.SeverityWarning, "Connection lost.")
		return StatusError, true
	default:
		return current, false
	}
}

// Sync aligns the cached state with the host when no operation is in
// flight. Besides the tunnel interface it looks for an openvpn process
// without one, as left behind by a timed-out connect; that session is
// reported as Error so Disconnect terminates it and Connect callers can
// refuse to start a second process.
func (c *SessionController) Sync(ctx context.Context) SessionState {
	state, _ := c.Reconcile(c.prober.IsTunnelUp())
	if state != StatusDisconnected || !c.processRunning(ctx) {
		return state
	}

	if !c.opMu.TryLock() {
		return c.Status()
	}
	defer c.opMu.Unlock()

	if c.Status() == StatusDisconnected {
		common.LogWarn("%s is running without a tunnel interface", filepath.Base(c.opts.Binary))
		c.setState(StatusError)
	}
	return c.Status()
}

// processRunning runs the unprivileged process check for the binary.
// A check that cannot run counts as "not running".
func (c *SessionController) processRunning(ctx context.Context) bool {
	res, err := c.runner.Run(ctx, false, c.opts.ProcessCheck, "-x", filepath.Base(c.opts.Binary))
	if err != nil {
		common.LogDebug("Process check unavailable: %v", err)
		return false
	}
	return res.ExitCode == 0
}

// ProbeVersion runs "openvpn --version" unprivileged and parses the first
// version token. It never changes the session state.
func (c *SessionController) ProbeVersion(ctx context.Context) (VersionInfo, bool) {
	res, err := c.runner.Run(ctx, false, c.opts.Binary, "--version")
	if err != nil {
		common.LogError("Version probe failed: %v", err)
		c.opts.Observer.Message(common.SeverityError, common.UserMessage(common.ErrBinaryNotFound))
		return VersionInfo{}, false
	}

	// openvpn 2.4 exits 1 after printing its version.
	version, ok := ParseVersion(res.Output())
	if !ok {
		common.LogWarn("Unrecognised version output: %q", res.Output())
		c.opts.Observer.Message(common.SeverityError, common.UserMessage(common.ErrBinaryNotFound))
		return VersionInfo{}, false
	}

	c.opts.Observer.Message(common.SeverityInfo, "OpenVPN "+version.String())
	return version, true
}
