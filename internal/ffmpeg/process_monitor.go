package ffmpeg

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats contains resource usage statistics for a transcoder process.
type ProcessStats struct {
	PID            int       `json:"pid"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemoryRSSBytes uint64    `json:"memory_rss_bytes"`
	StartedAt      time.Time `json:"started_at"`
	LastUpdated    time.Time `json:"last_updated"`
}

// ProcessMonitor samples resource usage of a running transcoder child.
// Sampling failures are ignored: the child may exit between samples.
type ProcessMonitor struct {
	pid      int
	interval time.Duration

	mu    sync.Mutex
	stats ProcessStats

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewProcessMonitor creates a monitor for the given PID.
func NewProcessMonitor(pid int) *ProcessMonitor {
	return &ProcessMonitor{
		pid:      pid,
		interval: time.Second,
		stats: ProcessStats{
			PID:       pid,
			StartedAt: time.Now(),
		},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins sampling in a background goroutine.
func (pm *ProcessMonitor) Start() {
	go pm.loop()
}

// Stop ends sampling and returns the last observed stats.
func (pm *ProcessMonitor) Stop() ProcessStats {
	close(pm.stopCh)
	<-pm.doneCh

	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.stats
}

// Stats returns the most recent sample.
func (pm *ProcessMonitor) Stats() ProcessStats {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.stats
}

func (pm *ProcessMonitor) loop() {
	defer close(pm.doneCh)

	proc, err := process.NewProcess(int32(pm.pid))
	if err != nil {
		return
	}

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pm.stopCh:
			return
		case <-ticker.C:
			pm.sample(proc)
		}
	}
}

func (pm *ProcessMonitor) sample(proc *process.Process) {
	cpu, err := proc.CPUPercent()
	if err != nil {
		return
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return
	}

	pm.mu.Lock()
	pm.stats.CPUPercent = cpu
	pm.stats.MemoryRSSBytes = mem.RSS
	pm.stats.LastUpdated = time.Now()
	pm.mu.Unlock()
}
