package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/MushhX/RavixPteroX/internal/repository"
)

const (
	revokedRetention = 30 * 24 * time.Hour
	auditRetention   = 90 * 24 * time.Hour
)

// Scheduler runs the housekeeping cron: stale sessions and old audit rows are
// purged daily. Neither purge affects auth decisions for live sessions.
type Scheduler struct {
	cron       *cron.Cron
	sessions   *repository.SessionRepository
	audit      *repository.AuditRepository
	refreshTTL time.Duration
	log        zerolog.Logger
}

func NewScheduler(sessions *repository.SessionRepository, audit *repository.AuditRepository, refreshTTL time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		sessions:   sessions,
		audit:      audit,
		refreshTTL: refreshTTL,
		log:        log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.purgeSessions); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 30 3 * * *", s.trimAudit); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits briefly for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("cron stop timed out")
	}
}

func (s *Scheduler) purgeSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now()
	purged, err := s.sessions.PurgeStale(ctx, now.Add(-revokedRetention), now.Add(-s.refreshTTL))
	if err != nil {
		s.log.Error().Err(err).Msg("session purge failed")
		return
	}
	if purged > 0 {
		s.log.Info().Int64("purged", purged).Msg("stale sessions purged")
	}
}

func (s *Scheduler) trimAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	trimmed, err := s.audit.TrimOlderThan(ctx, time.Now().Add(-auditRetention))
	if err != nil {
		s.log.Error().Err(err).Msg("audit trim failed")
		return
	}
	if trimmed > 0 {
		s.log.Info().Int64("trimmed", trimmed).Msg("old audit rows trimmed")
	}
}
