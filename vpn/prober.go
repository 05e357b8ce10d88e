package vpn

import (
	"net"
	"strings"

	"github.com/albanobattistella/eOVPN/common"
)

// Prober reports whether a tunnel interface is up.
type Prober interface {
	IsTunnelUp() bool
}

// InterfaceProber inspects the host interface table.
type InterfaceProber struct {
	// Prefix is the tunnel interface naming convention, e.g. "tun".
	Prefix string

	interfaces func() ([]net.Interface, error)
}

// NewInterfaceProber creates a prober matching interfaces named prefix*.
func NewInterfaceProber(prefix string) *InterfaceProber {
	if prefix == "" {
		prefix = common.DefaultTunnelPrefix
	}
	return &InterfaceProber{
		Prefix:     prefix,
		interfaces: net.Interfaces,
	}
}

// IsTunnelUp implements Prober.
func (p *InterfaceProber) IsTunnelUp() bool {
	_, ok := p.TunnelInterface()
	return ok
}

// TunnelInterface returns the first matching interface that is both
// administratively up and running.
func (p *InterfaceProber) TunnelInterface() (string, bool) {
	list := p.interfaces
	if list == nil {
		list = net.Interfaces
	}

	ifaces, err := list()
	if err != nil {
		common.LogDebug("Listing interfaces failed: %v", err)
		return "", false
	}

	for _, iface := range ifaces {
		if !strings.HasPrefix(iface.Name, p.Prefix) {
			continue
		}
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagRunning != 0 {
			return iface.Name, true
		}
	}
	return "", false
}
