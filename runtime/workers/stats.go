package workers

import (
	"context"
	"direct-chat/contract"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*StatsWorker)(nil)

// Population reports the current number of connections and distinct online users.
type Population interface {
	Count() (connections, users int)
}

// StatsRecorder receives the sampled values, observability.Metrics implements it.
type StatsRecorder interface {
	SetPopulation(connections, users int)
	SetProcessStats(rss uint64, cpuPercent float64)
}

// StatsWorker periodically samples the server process and the connection population.
type StatsWorker struct {
	log        *slog.Logger
	population Population
	recorder   StatsRecorder
	interval   time.Duration
	pid        int32
}

func NewStatsWorker(log *slog.Logger, population Population, recorder StatsRecorder, interval time.Duration) *StatsWorker {
	return &StatsWorker{
		log:        log,
		population: population,
		recorder:   recorder,
		interval:   interval,
		pid:        int32(os.Getpid()),
	}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(w.pid)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats sampling")
			return nil
		case <-ticker.C:
			w.sample(proc)
		}
	}
}

func (w *StatsWorker) sample(proc *process.Process) {
	connections, users := w.population.Count()
	w.recorder.SetPopulation(connections, users)

	memory, err := proc.MemoryInfo()
	if err != nil {
		w.log.Error("Error while finding process ram usage", "err", err)
		return
	}
	cpu, err := proc.CPUPercent()
	if err != nil {
		w.log.Error("Error while finding process cpu usage", "err", err)
		return
	}
	w.recorder.SetProcessStats(memory.RSS, cpu)
	w.log.Debug("Process stats",
		"connections", connections,
		"online_users", users,
		"rss", memory.RSS,
		"cpu", cpu)
}
