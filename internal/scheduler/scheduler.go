// Package scheduler runs the weekly cycle boundary sweep.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"
)

// CycleResetter clears last cycle's routine completions.
type CycleResetter interface {
	ResetCycle(ctx context.Context, now time.Time) (int, error)
}

// Scheduler triggers CycleResetter on a cron schedule evaluated in UTC.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	resetter CycleResetter
	timeout  time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// New validates the cron spec (six fields, seconds first) and registers the sweep.
func New(spec string, resetter CycleResetter, log *zap.Logger) (*Scheduler, error) {
	schedule, err := cron.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cycle reset schedule %q: %w", spec, err)
	}
	s := &Scheduler{
		cron:     cron.NewWithLocation(time.UTC),
		schedule: schedule,
		resetter: resetter,
		timeout:  time.Minute,
		log:      log.Named("scheduler"),
		now:      time.Now,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("cycle reset failed", zap.Error(err))
	}
}

// RunOnce performs one sweep now.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.resetter.ResetCycle(ctx, s.now().UTC())
}

// Start runs a catch-up sweep for a boundary missed while the process was
// down, then starts the cron loop.
func (s *Scheduler) Start() {
	s.tick()
	s.cron.Start()
	s.log.Info("cycle reset scheduled", zap.Time("next", s.Next()))
}

// Stop halts the cron loop. A running sweep is not interrupted.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Next returns the next scheduled sweep.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(s.now().UTC())
}
