// Package health implements periodic, control-thread-only sampling of
// process CPU and memory usage, surfaced through a snapshot the audio
// thread never touches directly (§9 design note on dependency wiring;
// SPEC_FULL.md's domain stack: "periodic control-thread sampling of
// process CPU/RSS").
//
// Grounded on the teacher's internal/monitor.SystemMonitor, which samples
// shirou/gopsutil/v3's cpu and mem packages on a ticker and compares
// against configured thresholds; simplified here to the snapshot-only
// subset this engine's device-abort/health-event path needs, dropping the
// teacher's notification/alerting layer (out of scope per spec.md §1).
package health

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/LuoYun-Team/soundflow-engine/internal/enginelog"
)

// Snapshot is one point-in-time reading of process-wide resource usage.
type Snapshot struct {
	Timestamp     time.Time
	CPUPercent    float64
	MemoryUsedMB  float64
	MemoryTotalMB float64
}

// Monitor periodically samples system resources on a control-thread
// ticker and keeps the latest Snapshot available for lock-light reads.
type Monitor struct {
	interval time.Duration

	mu   sync.RWMutex
	last Snapshot

	cancel context.CancelFunc
}

// New returns a Monitor that will sample every interval once Start is
// called.
func New(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{interval: interval}
}

// Start begins sampling in a background goroutine; never call this from
// the audio thread. Calling Start twice without an intervening Stop is a
// no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	logger := enginelog.ForService("health")
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				snap, err := sample()
				if err != nil {
					logger.Warn("health sample failed", "error", err)
					continue
				}
				m.mu.Lock()
				m.last = snap
				m.mu.Unlock()
			}
		}
	}()
}

// Stop halts the sampling goroutine.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Latest returns the most recent Snapshot; zero-value until the first
// sample completes.
func (m *Monitor) Latest() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func sample() (Snapshot, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return Snapshot{}, err
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Timestamp:     time.Now(),
		CPUPercent:    cpuPct,
		MemoryUsedMB:  float64(vm.Used) / (1024 * 1024),
		MemoryTotalMB: float64(vm.Total) / (1024 * 1024),
	}, nil
}
