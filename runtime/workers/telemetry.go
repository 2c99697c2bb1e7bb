package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chat-relay/runtime"

	"github.com/shirou/gopsutil/process"
)

const defaultTelemetryInterval = 30 * time.Second

// StatsSource exposes the orchestrator counters.
type StatsSource interface {
	Stats() runtime.Stats
}

// Report is one telemetry sample.
type Report struct {
	Pid        int32
	Status     string
	RSS        uint64
	CPUPercent float64
	runtime.Stats
}

// TelemetryWorker periodically logs the process health next to the relay counters.
type TelemetryWorker struct {
	log      *slog.Logger
	interval time.Duration
	source   StatsSource
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration, source StatsSource) *TelemetryWorker {
	if interval <= 0 {
		interval = defaultTelemetryInterval
	}
	return &TelemetryWorker{log: log, interval: interval, source: source}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting telemetry worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := w.collect(p)
			if err != nil {
				w.log.Warn("Failed to collect self stats", "error", err)
				continue
			}
			w.log.Info("Telemetry",
				"pid", report.Pid,
				"status", report.Status,
				"rss", report.RSS,
				"cpu", report.CPUPercent,
				"dispatched", report.Dispatched,
				"cast", report.Cast,
				"dropped", report.Dropped,
				"restarts", report.Restarts,
				"barriers", report.Barriers,
				"generation", report.Generation)
		}
	}
}

// collect retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func (w *TelemetryWorker) collect(p *process.Process) (Report, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return Report{}, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return Report{}, err
	}

	status, err := p.Status()
	if err != nil {
		return Report{}, err
	}

	report := Report{Pid: p.Pid, Status: status, RSS: memInfo.RSS, CPUPercent: cpuPercent}
	if w.source != nil {
		report.Stats = w.source.Stats()
	}
	return report, nil
}
