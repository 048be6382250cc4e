// Package housekeeping runs periodic maintenance tasks (the one task
// this package provides is config autosave) alongside the
// pulse-driven game loop, on their own cron schedule rather than on
// every pulse — grounded on vision3's internal/scheduler, which drives
// world events the same way: a robfig/cron/v3 instance wrapping a small
// set of named, independently scheduled functions.
package housekeeping

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dystopia-mud/mudcore/internal/config"
	"github.com/dystopia-mud/mudcore/internal/logging"
)

// Task is one named, independently scheduled maintenance function.
type Task struct {
	Name     string
	Schedule string // standard five-field cron expression or a descriptor such as "@every 1m"
	Run      func()
}

// Scheduler owns the cron instance and the set of registered tasks.
type Scheduler struct {
	cron *cron.Cron
	mu   sync.Mutex

	running map[string]bool
}

// New builds a Scheduler. It records only which tasks are currently
// running, so an overlapping run of the same task is skipped; it keeps
// no last-run times.
func New() *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		running: make(map[string]bool),
	}
}

// Register schedules t; invalid cron expressions are logged and
// skipped rather than treated as fatal, matching vision3's tolerance of
// a single bad event definition.
func (s *Scheduler) Register(t Task) {
	_, err := s.cron.AddFunc(t.Schedule, func() { s.runOnce(t) })
	if err != nil {
		logging.Error("housekeeping: bad schedule %q for task %q: %v", t.Schedule, t.Name, err)
		return
	}
	logging.Info("housekeeping: registered task %q (%s)", t.Name, t.Schedule)
}

func (s *Scheduler) runOnce(t Task) {
	s.mu.Lock()
	if s.running[t.Name] {
		s.mu.Unlock()
		logging.Warn("housekeeping: task %q still running, skipping this tick", t.Name)
		return
	}
	s.running[t.Name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, t.Name)
		s.mu.Unlock()
		if r := recover(); r != nil {
			logging.Error("housekeeping: task %q panicked: %v", t.Name, r)
		}
	}()

	t.Run()
}

// Start runs the cron scheduler until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}

// ConfigSaveTask returns a Task that persists cfg to disk every minute,
// a safety net for admin edits made through the `cfg` command between
// explicit saves.
func ConfigSaveTask(cfg *config.Registry) Task {
	return Task{
		Name:     "config-autosave",
		Schedule: "@every 1m",
		Run: func() {
			if err := cfg.Save(); err != nil {
				logging.Warn("housekeeping: config autosave failed: %v", err)
			}
		},
	}
}
