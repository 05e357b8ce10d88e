// Package cli provides the eovpn command-line interface. Each invocation
// builds a fresh session controller, aligns it with the live tunnel state,
// and then runs one operation.
package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/albanobattistella/eOVPN/common"
	"github.com/albanobattistella/eOVPN/config"
	"github.com/albanobattistella/eOVPN/keyring"
	"github.com/albanobattistella/eOVPN/notify"
	"github.com/albanobattistella/eOVPN/remote"
	"github.com/albanobattistella/eOVPN/vpn"
)

// app holds the components one command works with.
type app struct {
	cfg        *config.Config
	configDir  string
	out        io.Writer
	prober     *vpn.InterfaceProber
	controller *vpn.SessionController
	fetcher    *remote.Fetcher
	notifier   *notify.Notifier
	printer    *printer
	observer   common.Observer
}

// newApp loads the configuration and wires the controller to it.
func newApp(out io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	configDir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}

	notifier := notify.New(cfg.ShowNotifications)
	p := &printer{out: out}
	observer := common.MultiObserver{common.LogObserver{}, p, notifier}
	prober := vpn.NewInterfaceProber(cfg.TunnelPrefix)

	controller := vpn.NewSessionController(
		vpn.NewExecRunner(cfg.EscalationCommand),
		prober,
		vpn.Options{
			Binary:   cfg.OpenVPNBinary,
			Timeout:  cfg.Timeout(),
			Observer: observer,
		},
	)
	return &app{
		cfg:        cfg,
		configDir:  configDir,
		out:        out,
		prober:     prober,
		controller: controller,
		fetcher:    remote.NewFetcher(common.FetchTimeout),
		notifier:   notifier,
		printer:    p,
		observer:   observer,
	}, nil
}

func (a *app) close() {
	if err := a.notifier.Close(); err != nil {
		common.LogDebug("Closing notifier: %v", err)
	}
}

// connectionRequest builds the request for configPath, refreshing the
// auth file from the keyring and resetting the session log.
func (a *app) connectionRequest(configPath string) (vpn.ConnectionRequest, error) {
	if a.cfg.Username == "" {
		return vpn.ConnectionRequest{}, fmt.Errorf("%w: run \"eovpn auth\" first", common.ErrCredentialsNotFound)
	}

	caPath := a.cfg.CACertPath()
	if caPath != "" && !common.FileExists(caPath) {
		return vpn.ConnectionRequest{}, fmt.Errorf("%w: CA certificate %s", common.ErrConfigNotFound, caPath)
	}

	authPath := filepath.Join(a.configDir, common.AuthFileName)
	if err := keyring.WriteAuthFile(authPath, a.cfg.Username); err != nil {
		return vpn.ConnectionRequest{}, err
	}

	logPath := filepath.Join(a.configDir, common.SessionLogFileName)
	if err := common.TruncateFile(logPath); err != nil {
		common.LogWarn("Could not reset %s: %v", logPath, err)
	}

	return vpn.ConnectionRequest{
		ConfigPath:   configPath,
		AuthFilePath: authPath,
		CACertPath:   caPath,
		LogFilePath:  logPath,
		Timeout:      a.cfg.Timeout(),
	}, nil
}

// findConfig resolves name against the configs in dir. Matching is
// case-insensitive and the .ovpn suffix is optional. An empty name picks
// the only config when there is exactly one.
func findConfig(dir, name string) (string, error) {
	entries, err := remote.ListConfigs(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w in %s", common.ErrConfigNotFound, dir)
	}

	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		if len(entries) == 1 {
			return filepath.Join(dir, entries[0].FileName), nil
		}
		return "", fmt.Errorf("several configs available, pick one: %s", joinNames(entries))
	}

	for _, e := range entries {
		lower := strings.ToLower(e.FileName)
		if lower == name || strings.TrimSuffix(lower, ".ovpn") == name {
			return filepath.Join(dir, e.FileName), nil
		}
	}
	return "", fmt.Errorf("%w: %s", common.ErrConfigNotFound, name)
}

func joinNames(entries []common.ConfigEntry) string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.FileName, ".ovpn"))
	}
	return strings.Join(names, ", ")
}

// printer writes observer messages to the terminal. Errors are left to the
// command's return value so they are printed once.
type printer struct {
	mu       sync.Mutex
	out      io.Writer
	watching bool
}

func (p *printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p *printer) StatusChanged(state common.SessionState) {
	if !p.watching {
		return
	}
	p.println("Status: " + stateStyle(state).Render(state.String()))
}

func (p *printer) Message(severity common.Severity, text string) {
	if severity == common.SeverityError {
		return
	}
	p.println(messageStyle(severity).Render(text))
}

func (p *printer) ConfigListChanged(entries []common.ConfigEntry) {
	if !p.watching {
		return
	}
	p.println(fmt.Sprintf("%d config(s): %s", len(entries), joinNames(entries)))
}
