package vpn

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fakeInterfaces(ifaces ...net.Interface) func() ([]net.Interface, error) {
	return func() ([]net.Interface, error) { return ifaces, nil }
}

func TestInterfaceProber(t *testing.T) {
	upRunning := net.FlagUp | net.FlagRunning

	tests := []struct {
		name   string
		ifaces []net.Interface
		want   string
	}{
		{"no interfaces", nil, ""},
		{"only ethernet", []net.Interface{{Name: "eth0", Flags: upRunning}}, ""},
		{"tun up", []net.Interface{{Name: "eth0", Flags: upRunning}, {Name: "tun0", Flags: upRunning}}, "tun0"},
		{"tun admin down", []net.Interface{{Name: "tun0", Flags: net.FlagRunning}}, ""},
		{"tun not running", []net.Interface{{Name: "tun0", Flags: net.FlagUp}}, ""},
		{"second tun up", []net.Interface{{Name: "tun0", Flags: net.FlagUp}, {Name: "tun1", Flags: upRunning}}, "tun1"},
		{"prefix only at start", []net.Interface{{Name: "vtun0", Flags: upRunning}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewInterfaceProber("tun")
			p.interfaces = fakeInterfaces(tt.ifaces...)

			name, ok := p.TunnelInterface()
			assert.Equal(t, tt.want, name)
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, ok, p.IsTunnelUp())
		})
	}
}

func TestInterfaceProber_ListError(t *testing.T) {
	p := NewInterfaceProber("")
	p.interfaces = func() ([]net.Interface, error) { return nil, errors.New("netlink failure") }

	assert.False(t, p.IsTunnelUp(), "listing errors count as down")
	assert.Equal(t, "tun", p.Prefix)
}
