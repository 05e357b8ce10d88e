// Package vpn provides tunnel session management.
// This file contains the Monitor, which keeps the controller's cached
// state honest when the tunnel changes outside a connect/disconnect call.
package vpn

import (
	"sync"
	"time"

	"github.com/albanobattistella/eOVPN/common"
)

// Monitor periodically reconciles a SessionController with the prober.
type Monitor struct {
	mu         sync.RWMutex
	controller *SessionController
	prober     Prober
	interval   time.Duration
	running    bool
	stopChan   chan struct{}
	done       chan struct{}
}

// NewMonitor creates a monitor checking every interval.
func NewMonitor(controller *SessionController, prober Prober, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = common.MonitorInterval
	}
	return &Monitor{
		controller: controller,
		prober:     prober,
		interval:   interval,
	}
}

// Start begins the monitoring loop. An immediate check runs first so the
// controller reflects a tunnel that was already up at startup.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stopChan, m.done
	m.mu.Unlock()

	common.LogInfo("Tunnel monitor started (interval: %v)", m.interval)

	go m.runLoop(stop, done)
}

// Stop stops the monitoring loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	done := m.done
	m.mu.Unlock()

	<-done
	common.LogInfo("Tunnel monitor stopped")
}

// IsRunning returns whether the monitor is currently running.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) runLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	m.check()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.check()
		}
	}
}

// check performs one reconciliation.
func (m *Monitor) check() {
	up := m.prober.IsTunnelUp()
	if state, changed := m.controller.Reconcile(up); changed {
		common.LogDebug("Monitor moved session to %s", state)
	}
}
