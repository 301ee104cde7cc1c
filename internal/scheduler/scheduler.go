package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"forumdigest/internal/digest"
	"forumdigest/internal/metrics"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	cycleTimeout          = 15 * time.Minute
)

// Scheduler fires the digest cycle on a cron spec. A tick arriving while
// the previous cycle is still running is skipped, not queued.
type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	cronSpec string
	cycle    *digest.Cycle
	running  sync.Mutex
	log      *slog.Logger
}

func New(
	ctx context.Context,
	cronSpec string,
	cycle *digest.Cycle,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:      ctx,
		cron:     c,
		cronSpec: cronSpec,
		cycle:    cycle,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cronSpec, s.runCycle); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) runCycle() {
	if !s.running.TryLock() {
		metrics.CyclesSkipped.Inc()
		s.log.Warn("Previous digest cycle is still running so tick is skipped")

		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, cycleTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	if err := s.cycle.Run(ctx); err != nil {
		s.log.ErrorContext(ctx, "Digest cycle finished with failures",
			"error", err)
	}
}
