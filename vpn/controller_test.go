package vpn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albanobattistella/eOVPN/common"
)

type runCall struct {
	privileged bool
	name       string
	args       []string
}

type stubRunner struct {
	mu      sync.Mutex
	calls   []runCall
	result  ExitResult
	err     error
	release chan struct{}
	started chan struct{}
	onRun   func(name string)
}

func (s *stubRunner) Run(ctx context.Context, privileged bool, name string, args ...string) (ExitResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, runCall{privileged: privileged, name: name, args: args})
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if s.onRun != nil {
		s.onRun(name)
	}
	return s.result, s.err
}

func (s *stubRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubProber struct {
	up     atomic.Bool
	checks atomic.Int32
}

func (p *stubProber) IsTunnelUp() bool {
	p.checks.Add(1)
	return p.up.Load()
}

type recordingObserver struct {
	mu       sync.Mutex
	states   []common.SessionState
	messages []string
}

func (r *recordingObserver) StatusChanged(s common.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingObserver) Message(_ common.Severity, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

func (r *recordingObserver) ConfigListChanged([]common.ConfigEntry) {}

func newTestController(runner Runner, prober Prober, interval, timeout time.Duration) (*SessionController, *recordingObserver) {
	obs := &recordingObserver{}
	c := NewSessionController(runner, prober, Options{
		PollInterval: interval,
		Timeout:      timeout,
		Observer:     obs,
	})
	return c, obs
}

func testRequest() ConnectionRequest {
	return ConnectionRequest{
		ConfigPath:   "/configs/de1.ovpn",
		AuthFilePath: "/home/u/.config/eovpn/auth.txt",
		LogFilePath:  "/home/u/.config/eovpn/session.log",
	}
}

func TestConnectionRequest_Args(t *testing.T) {
	req := testRequest()
	assert.Equal(t, []string{
		"--config", "/configs/de1.ovpn",
		"--auth-user-pass", "/home/u/.config/eovpn/auth.txt",
		"--log", "/home/u/.config/eovpn/session.log",
		"--daemon",
	}, req.Args())

	req.CACertPath = "/configs/ca.crt"
	assert.Equal(t, []string{
		"--config", "/configs/de1.ovpn",
		"--auth-user-pass", "/home/u/.config/eovpn/auth.txt",
		"--ca", "/configs/ca.crt",
		"--log", "/home/u/.config/eovpn/session.log",
		"--daemon",
	}, req.Args())
}

func TestConnect_UpImmediately(t *testing.T) {
	runner := &stubRunner{}
	prober := &stubProber{}
	prober.up.Store(true)
	interval := 200 * time.Millisecond
	c, obs := newTestController(runner, prober, interval, 5*time.Second)

	start := time.Now()
	outcome, err := c.Connect(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, OutcomeConnected, outcome)
	assert.Less(t, time.Since(start), interval)
	assert.Equal(t, StatusConnected, c.Status())

	require.Equal(t, 1, runner.callCount())
	call := runner.calls[0]
	assert.True(t, call.privileged)
	assert.Equal(t, "openvpn", call.name)
	assert.Equal(t, testRequest().Args(), call.args)

	assert.Equal(t, []common.SessionState{StatusConnecting, StatusConnected}, obs.states)
	assert.Contains(t, obs.messages, "Connected to de1.ovpn.")
}

func TestConnect_UpAfterSomePolls(t *testing.T) {
	prober := &stubProber{}
	runner := &stubRunner{}
	c, _ := newTestController(runner, prober, 10*time.Millisecond, 5*time.Second)

	go func() {
		time.Sleep(50 * time.Millisecond)
		prober.up.Store(true)
	}()

	outcome, err := c.Connect(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConnected, outcome)
	assert.Greater(t, prober.checks.Load(), int32(1))
}

func TestConnect_TimesOutAtDeadline(t *testing.T) {
	runner := &stubRunner{}
	prober := &stubProber{}
	interval := 10 * time.Millisecond
	timeout := 100 * time.Millisecond
	c, _ := newTestController(runner, prober, interval, timeout)

	start := time.Now()
	outcome, err := c.Connect(context.Background(), testRequest())
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Equal(t, StatusError, c.Status())
	assert.GreaterOrEqual(t, elapsed, timeout-interval)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
	assert.Equal(t, 1, runner.callCount(), "openvpn must not be killed on timeout")
}

func TestConnect_RequestTimeoutOverridesDefault(t *testing.T) {
	c, _ := newTestController(&stubRunner{}, &stubProber{}, 10*time.Millisecond, time.Hour)

	req := testRequest()
	req.Timeout = 50 * time.Millisecond

	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := c.Connect(context.Background(), req)
		done <- outcome
	}()

	select {
	case outcome := <-done:
		assert.Equal(t, OutcomeTimedOut, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect ignored the request timeout")
	}
}

func TestConnect_LaunchError(t *testing.T) {
	runner := &stubRunner{err: common.WrapError(common.ErrLaunch, "pkexec")}
	prober := &stubProber{}
	c, obs := newTestController(runner, prober, 10*time.Millisecond, time.Second)

	outcome, err := c.Connect(context.Background(), testRequest())

	assert.ErrorIs(t, err, ErrLaunch)
	assert.Equal(t, OutcomeLaunchFailed, outcome)
	assert.Equal(t, StatusError, c.Status())
	assert.Zero(t, prober.checks.Load())
	assert.Contains(t, obs.messages, "Could not start OpenVPN.")
}

func TestConnect_NonZeroLauncherExit(t *testing.T) {
	runner := &stubRunner{result: ExitResult{ExitCode: 126, Stderr: "Not authorized"}}
	c, _ := newTestController(runner, &stubProber{}, 10*time.Millisecond, time.Second)

	outcome, err := c.Connect(context.Background(), testRequest())

	assert.ErrorIs(t, err, ErrLaunch)
	assert.Contains(t, err.Error(), "Not authorized")
	assert.Equal(t, OutcomeLaunchFailed, outcome)
	assert.Equal(t, StatusError, c.Status())
}

func TestConnect_UsableAfterError(t *testing.T) {
	runner := &stubRunner{err: common.ErrLaunch}
	prober := &stubProber{}
	c, _ := newTestController(runner, prober, 10*time.Millisecond, time.Second)

	_, err := c.Connect(context.Background(), testRequest())
	require.Error(t, err)

	runner.err = nil
	prober.up.Store(true)
	outcome, err := c.Connect(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConnected, outcome)
}

func TestConnect_RejectedWhenConnected(t *testing.T) {
	runner := &stubRunner{}
	prober := &stubProber{}
	prober.up.Store(true)
	c, _ := newTestController(runner, prober, 10*time.Millisecond, time.Second)

	_, err := c.Connect(context.Background(), testRequest())
	require.NoError(t, err)

	outcome, err := c.Connect(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, OutcomeRejected, outcome)
	assert.Equal(t, 1, runner.callCount())
	assert.Equal(t, StatusConnected, c.Status())
}

func TestConnect_RejectsEmptyConfig(t *testing.T) {
	runner := &stubRunner{}
	c, obs := newTestController(runner, &stubProber{}, 10*time.Millisecond, time.Second)

	outcome, err := c.Connect(context.Background(), ConnectionRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, OutcomeRejected, outcome)
	assert.Zero(t, runner.callCount())
	assert.Empty(t, obs.states)
}

func TestConnect_ConcurrentCallRejected(t *testing.T) {
	runner := &stubRunner{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	prober := &stubProber{}
	prober.up.Store(true)
	c, _ := newTestController(runner, prober, 10*time.Millisecond, time.Second)

	first := c.ConnectAsync(context.Background(), testRequest())
	<-runner.started
	assert.Equal(t, StatusConnecting, c.Status())

	outcome, err := c.Connect(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, OutcomeRejected, outcome)

	_, err = c.Disconnect(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(runner.release)
	result := <-first
	require.NoError(t, result.Err)
	assert.Equal(t, OutcomeConnected, result.Outcome)
	assert.Equal(t, 1, runner.callCount())
}

func TestConnect_Cancelled(t *testing.T) {
	c, _ := newTestController(&stubRunner{}, &stubProber{}, 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome, err := c.Connect(ctx, testRequest())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, StatusError, c.Status())
}

func TestConnectAsync_DeliversAttemptID(t *testing.T) {
	prober := &stubProber{}
	prober.up.Store(true)
	c, _ := newTestController(&stubRunner{}, prober, 10*time.Millisecond, time.Second)

	select {
	case result := <-c.ConnectAsync(context.Background(), testRequest()):
		require.NoError(t, result.Err)
		assert.Equal(t, OutcomeConnected, result.Outcome)
		assert.NotEmpty(t, result.AttemptID)
		assert.Equal(t, c.AttemptID(), result.AttemptID)
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectAsync never delivered a result")
	}
}

func connectedController(t *testing.T, timeout time.Duration) (*SessionController, *stubRunner, *stubProber) {
	t.Helper()
	runner := &stubRunner{}
	prober := &stubProber{}
	prober.up.Store(true)
	c, _ := newTestController(runner, prober, 10*time.Millisecond, timeout)
	_, err := c.Connect(context.Background(), testRequest())
	require.NoError(t, err)
	return c, runner, prober
}

func TestDisconnect(t *testing.T) {
	c, runner, prober := connectedController(t, time.Second)
	runner.onRun = func(name string) {
		if name == "killall" {
			prober.up.Store(false)
		}
	}

	outcome, err := c.Disconnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisconnected, outcome)
	assert.Equal(t, StatusDisconnected, c.Status())

	require.Equal(t, 2, runner.callCount())
	call := runner.calls[1]
	assert.True(t, call.privileged)
	assert.Equal(t, "killall", call.name)
	assert.Equal(t, []string{"openvpn"}, call.args)
}

func TestDisconnect_TwiceIsNoOp(t *testing.T) {
	c, runner, prober := connectedController(t, time.Second)
	prober.up.Store(false)

	_, err := c.Disconnect(context.Background())
	require.NoError(t, err)
	calls := runner.callCount()

	start := time.Now()
	outcome, err := c.Disconnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisconnected, outcome)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, calls, runner.callCount(), "no runner call expected")
}

func TestDisconnect_WhenNeverConnected(t *testing.T) {
	runner := &stubRunner{}
	c, obs := newTestController(runner, &stubProber{}, 10*time.Millisecond, time.Second)

	outcome, err := c.Disconnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisconnected, outcome)
	assert.Zero(t, runner.callCount())
	assert.Empty(t, obs.states)
}

func TestDisconnect_KillallFindsNothing(t *testing.T) {
	c, runner, prober := connectedController(t, time.Second)
	runner.result = ExitResult{ExitCode: 1, Stderr: "openvpn: no process found"}
	prober.up.Store(false)

	outcome, err := c.Disconnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisconnected, outcome)
}

func TestDisconnect_TimesOut(t *testing.T) {
	c, _, _ := connectedController(t, 80*time.Millisecond)

	outcome, err := c.Disconnect(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Equal(t, StatusError, c.Status())
}

func TestDisconnect_LaunchError(t *testing.T) {
	c, runner, _ := connectedController(t, time.Second)
	runner.err = common.ErrLaunch

	outcome, err := c.Disconnect(context.Background())
	assert.ErrorIs(t, err, ErrLaunch)
	assert.Equal(t, OutcomeLaunchFailed, outcome)
	assert.Equal(t, StatusError, c.Status())
}

func TestDisconnectAsync(t *testing.T) {
	c, _, prober := connectedController(t, time.Second)
	prober.up.Store(false)

	result := <-c.DisconnectAsync(context.Background())
	require.NoError(t, result.Err)
	assert.Equal(t, OutcomeDisconnected, result.Outcome)
}

func TestReconcile(t *testing.T) {
	c, obs := newTestController(&stubRunner{}, &stubProber{}, 10*time.Millisecond, time.Second)

	state, changed := c.Reconcile(false)
	assert.False(t, changed)
	assert.Equal(t, StatusDisconnected, state)

	state, changed = c.Reconcile(true)
	assert.True(t, changed)
	assert.Equal(t, StatusConnected, state)

	state, changed = c.Reconcile(false)
	assert.True(t, changed)
	assert.Equal(t, StatusError, state)
	assert.Contains(t, obs.messages, "Connection lost.")
}

func TestProbeVersion(t *testing.T) {
	runner := &stubRunner{result: ExitResult{
		ExitCode: 1,
		Stdout:   "OpenVPN 2.4.12 x86_64-pc-linux-gnu [SSL (OpenSSL)] [LZO] built on Mar 17 2022\nlibrary versions: OpenSSL 1.1.1n",
	}}
	c, obs := newTestController(runner, &stubProber{}, 10*time.Millisecond, time.Second)

	version, ok := c.ProbeVersion(context.Background())
	require.True(t, ok)
	assert.Equal(t, VersionInfo{Major: 2, Minor: 4, Patch: 12}, version)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Empty(t, obs.states)

	require.Equal(t, 1, runner.callCount())
	assert.False(t, runner.calls[0].privileged)
	assert.Equal(t, []string{"--version"}, runner.calls[0].args)
}

func TestProbeVersion_Absent(t *testing.T) {
	runner := &stubRunner{err: common.ErrLaunch}
	c, obs := newTestController(runner, &stubProber{}, 10*time.Millisecond, time.Second)

	_, ok := c.ProbeVersion(context.Background())
	assert.False(t, ok)
	assert.Contains(t, obs.messages, "OpenVPN not found.")

	runner.err = nil
	runner.result = ExitResult{Stdout: "garbage"}
	_, ok = c.ProbeVersion(context.Background())
	assert.False(t, ok)
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		outcome  Outcome
		expected string
	}{
		{OutcomeRejected, "Rejected"},
		{OutcomeConnected, "Connected"},
		{OutcomeDisconnected, "Disconnected"},
		{OutcomeTimedOut, "TimedOut"},
		{OutcomeLaunchFailed, "LaunchFailed"},
		{OutcomeCancelled, "Cancelled"},
		{Outcome(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.outcome.String())
		})
	}
}

func TestSync_LeftoverProcessBecomesError(t *testing.T) {
	runner := &stubRunner{result: ExitResult{ExitCode: 0, Stdout: "4242\n"}}
	prober := &stubProber{}
	c, _ := newTestController(runner, prober, 10*time.Millisecond, time.Second)

	assert.Equal(t, StatusError, c.Sync(context.Background()))
	assert.Equal(t, StatusError, c.Status())

	require.Equal(t, 1, runner.callCount())
	call := runner.calls[0]
	assert.False(t, call.privileged)
	assert.Equal(t, "pgrep", call.name)
	assert.Equal(t, []string{"-x", "openvpn"}, call.args)

	// The leftover process is now reachable by Disconnect.
	outcome, err := c.Disconnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisconnected, outcome)
	require.Equal(t, 2, runner.callCount())
	assert.Equal(t, "killall", runner.calls[1].name)
	assert.True(t, runner.calls[1].privileged)
}

func TestSync_NoProcess(t *testing.T) {
	runner := &stubRunner{result: ExitResult{ExitCode: 1}}
	c, _ := newTestController(runner, &stubProber{}, 10*time.Millisecond, time.Second)

	assert.Equal(t, StatusDisconnected, c.Sync(context.Background()))

	_, err := c.Disconnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.callCount(), "disconnect must not run killall")
}

func TestSync_CheckUnavailable(t *testing.T) {
	runner := &stubRunner{err: common.ErrLaunch}
	c, _ := newTestController(runner, &stubProber{}, 10*time.Millisecond, time.Second)

	assert.Equal(t, StatusDisconnected, c.Sync(context.Background()))
}

func TestSync_TunnelUpSkipsProcessCheck(t *testing.T) {
	runner := &stubRunner{}
	prober := &stubProber{}
	prober.up.Store(true)
	c, _ := newTestController(runner, prober, 10*time.Millisecond, time.Second)

	assert.Equal(t, StatusConnected, c.Sync(context.Background()))
	assert.Zero(t, runner.callCount())
}
