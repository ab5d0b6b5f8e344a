package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sb-works/collab-backend/internal/logging"
	"github.com/sb-works/collab-backend/internal/metrics"
	"github.com/sb-works/collab-backend/internal/projects/domain"
)

// DefaultSchedule runs the audit nightly at 03:00 (seconds field first).
const DefaultSchedule = "0 0 3 * * *"

const runTimeout = 5 * time.Minute

type ViolationFinder interface {
	FindViolations(ctx context.Context) ([]domain.Violation, error)
}

// Scheduler periodically checks stored projects and applications against
// the lifecycle invariants. It only reports; nothing is repaired.
type Scheduler struct {
	finder   ViolationFinder
	schedule string
	cron     *cron.Cron
	log      zerolog.Logger
}

func NewScheduler(finder ViolationFinder, schedule string) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		finder:   finder,
		schedule: schedule,
		cron:     cron.New(cron.WithSeconds()),
		log:      logging.With("audit"),
	}
}

// Start registers the audit job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error().Err(err).Msg("audit run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule audit %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("audit scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running audit to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs a single audit and exports the violation count.
func (s *Scheduler) RunOnce(ctx context.Context) ([]domain.Violation, error) {
	start := time.Now()
	found, err := s.finder.FindViolations(ctx)
	if err != nil {
		return nil, err
	}

	metrics.SetViolations(len(found))
	for _, v := range found {
		s.log.Warn().Str("project_id", v.ProjectID).Str("kind", v.Kind).Str("detail", v.Detail).Msg("invariant violation")
	}
	s.log.Info().Int("violations", len(found)).Dur("took", time.Since(start)).Msg("audit completed")
	return found, nil
}
