package workers

import (
	"chatline/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsReporter periodically logs relay counters plus process health
// (RSS, CPU). It is the only consumer of gopsutil; a failed sample is
// logged and skipped, never fatal.
type StatsReporter struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
}

func NewStatsReporter(log *slog.Logger, monitor *observability.Monitor, interval time.Duration) *StatsReporter {
	return &StatsReporter{log: log, monitor: monitor, interval: interval}
}

func (w *StatsReporter) Run(ctx context.Context) error {
	w.log.Info("Starting stats reporter")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			attrs := []any{}
			for k, v := range w.monitor.Snapshot() {
				attrs = append(attrs, k, v)
			}
			if mem, err := p.MemoryInfo(); err == nil {
				attrs = append(attrs, "rss_mb", mem.RSS/1024/1024)
			}
			if cpu, err := p.CPUPercent(); err == nil {
				attrs = append(attrs, "cpu_percent", cpu)
			}
			w.log.Info("Relay stats", attrs...)
		}
	}
}
