package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/telemetry"
)

// CodeCounter reports registry totals for the access code gauges.
type CodeCounter interface {
	Counts(ctx context.Context) (*model.AccessCodeCounts, error)
}

// CleanupJob purges expired admin sessions and refreshes the registry gauges.
// Expired access codes are never deleted; they stay in the registry for the audit trail.
type CleanupJob struct {
	adminSessionRepo repository.AdminSessionRepository
	codes            CodeCounter
	interval         time.Duration
	done             chan struct{}
}

func NewCleanupJob(
	adminSessionRepo repository.AdminSessionRepository,
	codes CodeCounter,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		adminSessionRepo: adminSessionRepo,
		codes:            codes,
		interval:         interval,
		done:             make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "admin sessions", j.adminSessionRepo.DeleteExpired)
	j.refreshGauges(ctx)
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}

func (j *CleanupJob) refreshGauges(ctx context.Context) {
	if j.codes == nil {
		return
	}
	counts, err := j.codes.Counts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to count access codes")
		return
	}
	telemetry.SetCodeCounts(counts)
}
