// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler runs named jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Add registers job under name to run on spec. Specs use the standard
// five-field cron syntax plus the @every shorthand.
func (s *Scheduler) Add(name, spec string, job func()) error {
	_, err := s.cron.AddFunc(spec, func() {
		log.Printf("Running scheduled job: %s", name)
		job()
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression for %s: %w", name, err)
	}
	return nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs. Jobs already running finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
