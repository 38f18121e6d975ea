package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/config"
	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/sse"
	"github.com/songon-extension/access-server/internal/telemetry"
)

const accessLogWriteTimeout = 5 * time.Second

// AccessLogService is the audit log of granted accesses. Record hands entries to a
// background writer so a slow database never delays a delivery; list, recent and
// stats all read the same table, so they cannot drift apart.
type AccessLogService struct {
	repo      repository.AccessLogRepository
	publisher EventPublisher
	now       func() time.Time

	queue  chan model.AccessLogEntry
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewAccessLogService(repo repository.AccessLogRepository, publisher EventPublisher) *AccessLogService {
	return newAccessLogService(repo, publisher, config.AccessLogBufferSize)
}

func newAccessLogService(repo repository.AccessLogRepository, publisher EventPublisher, queueSize int) *AccessLogService {
	s := &AccessLogService{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
		queue:     make(chan model.AccessLogEntry, queueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Record never fails or blocks the caller. Write errors and entries dropped on a
// full queue are logged and counted in audit_log_write_failures_total.
func (s *AccessLogService) Record(ctx context.Context, entry model.AccessLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.write(entry)
		return
	}

	select {
	case s.queue <- entry:
	default:
		telemetry.AuditLogWriteFailuresTotal.Inc()
		log.Error().
			Str("parcelleId", entry.ParcelleID).
			Str("documentType", entry.DocumentType).
			Msg("access log queue full, entry dropped")
	}
}

func (s *AccessLogService) run() {
	defer s.wg.Done()
	for entry := range s.queue {
		s.write(entry)
	}
}

func (s *AccessLogService) write(entry model.AccessLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), accessLogWriteTimeout)
	defer cancel()

	if err := s.repo.Insert(ctx, entry); err != nil {
		telemetry.AuditLogWriteFailuresTotal.Inc()
		log.Error().
			Err(err).
			Str("parcelleId", entry.ParcelleID).
			Str("documentType", entry.DocumentType).
			Msg("failed to persist access log entry")
		return
	}
	publish(ctx, s.publisher, sse.EventAccessLog, entry)
}

// Close drains pending entries. Entries recorded afterwards are written inline.
func (s *AccessLogService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}

// List returns entries oldest first, optionally only those after since.
func (s *AccessLogService) List(ctx context.Context, since *time.Time) ([]model.AccessLogEntry, error) {
	entries, err := s.repo.List(ctx, since)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return entries, nil
}

func (s *AccessLogService) Stats(ctx context.Context) (*model.AccessLogStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return stats, nil
}

// Recent returns the newest entries with a relative time label computed now, at read time.
func (s *AccessLogService) Recent(ctx context.Context, limit int, since *time.Time) ([]model.RecentAccess, error) {
	entries, err := s.repo.Recent(ctx, limit, since)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	now := s.now()
	out := make([]model.RecentAccess, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.RecentAccess{
			AccessLogEntry: e,
			RelativeTime:   RelativeTime(e.Timestamp, now),
		})
	}
	return out, nil
}

// RelativeTime labels t relative to now in French.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "à l'instant"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "heure")
	default:
		return plural(int(d/(24*time.Hour)), "jour")
	}
}

func plural(n int, unit string) string {
	if n > 1 {
		unit += "s"
	}
	return fmt.Sprintf("il y a %d %s", n, unit)
}
