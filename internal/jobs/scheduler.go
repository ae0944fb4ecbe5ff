package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// Scheduler runs the reservation expiry sweep on a cron schedule. Schedules
// take a leading seconds field or a descriptor such as "@every 1m".
type Scheduler struct {
	cron     *cron.Cron
	expirer  Expirer
	schedule string
	timeout  time.Duration
	log      zerolog.Logger
}

func NewScheduler(expirer Expirer, schedule string, log zerolog.Logger) *Scheduler {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{
		cron:     c,
		expirer:  expirer,
		schedule: schedule,
		timeout:  30 * time.Second,
		log:      log,
	}
}

// Start registers the sweep and starts the cron loop. An empty schedule
// leaves the sweep disabled.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.log.Info().Msg("expiry sweep disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("expiry sweep scheduled")
	return nil
}

// Stop waits up to five seconds for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("expiry sweep still running at shutdown")
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.expirer.ExpireDue(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	s.log.Debug().Int("expired", n).Msg("expiry sweep done")
}
