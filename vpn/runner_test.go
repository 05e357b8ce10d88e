package vpn

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albanobattistella/eOVPN/common"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExitResult_Output(t *testing.T) {
	tests := []struct {
		name   string
		result ExitResult
		want   string
	}{
		{"both streams", ExitResult{Stdout: "out\n", Stderr: "err\n"}, "out\nerr"},
		{"stdout only", ExitResult{Stdout: "out\n"}, "out"},
		{"stderr only", ExitResult{Stderr: "\n  Not authorized\n"}, "Not authorized"},
		{"blank stdout", ExitResult{Stdout: "\n\n", Stderr: "err"}, "err"},
		{"empty", ExitResult{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Output())
		})
	}
}

func TestExecRunner_CapturesOutputAndExitCode(t *testing.T) {
	requireShell(t)
	r := NewExecRunner("env")

	res, err := r.Run(context.Background(), false, "sh", "-c", "echo out; echo err >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out", strings.TrimSpace(res.Stdout))
	assert.Equal(t, "err", strings.TrimSpace(res.Stderr))
	assert.Equal(t, "out\nerr", res.Output())
}

func TestExecRunner_PrivilegedUsesEscalator(t *testing.T) {
	requireShell(t)
	// env runs its arguments as a command, standing in for pkexec.
	r := NewExecRunner("env")

	res, err := r.Run(context.Background(), true, "sh", "-c", "echo escalated")
	require.NoError(t, err)
	assert.Equal(t, "escalated", strings.TrimSpace(res.Stdout))
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner("env")

	_, err := r.Run(context.Background(), false, "definitely-not-a-real-binary-eovpn")
	assert.ErrorIs(t, err, common.ErrLaunch)
}

func TestExecRunner_MissingEscalator(t *testing.T) {
	requireShell(t)
	r := NewExecRunner("definitely-not-a-real-escalator")

	_, err := r.Run(context.Background(), true, "sh", "-c", "true")
	assert.ErrorIs(t, err, common.ErrLaunch)
}

func TestExecRunner_DoesNotWaitForDaemonizedChild(t *testing.T) {
	requireShell(t)
	r := NewExecRunner("env")
	r.WaitDelay = 100 * time.Millisecond

	start := time.Now()
	res, err := r.Run(context.Background(), false, "sh", "-c", "sleep 5 & exit 0")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Less(t, time.Since(start), 3*time.Second, "Run should not wait for the background child")
}
