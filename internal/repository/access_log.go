package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/songon-extension/access-server/internal/database"
	"github.com/songon-extension/access-server/internal/model"
)

// AccessLogRepository is append-only: there is no update and no delete.
type AccessLogRepository interface {
	Insert(ctx context.Context, entry model.AccessLogEntry) error
	List(ctx context.Context, since *time.Time) ([]model.AccessLogEntry, error)
	Recent(ctx context.Context, limit int, since *time.Time) ([]model.AccessLogEntry, error)
	Stats(ctx context.Context) (*model.AccessLogStats, error)
}

type accessLogRepo struct {
	db *sqlx.DB
}

func NewAccessLogRepository(db *sqlx.DB) AccessLogRepository {
	return &accessLogRepo{db: db}
}

func (r *accessLogRepo) Insert(ctx context.Context, entry model.AccessLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_logs (id, code, client_name, parcelle_id, parcelle_nom, document_type, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.Code, entry.ClientName, entry.ParcelleID, entry.ParcelleNom, entry.DocumentType, entry.Timestamp)
	return err
}

// List returns entries oldest first.
func (r *accessLogRepo) List(ctx context.Context, since *time.Time) ([]model.AccessLogEntry, error) {
	entries := []model.AccessLogEntry{}
	var err error
	if since == nil {
		err = r.db.SelectContext(ctx, &entries, `
			SELECT * FROM access_logs ORDER BY timestamp, seq
		`)
	} else {
		err = r.db.SelectContext(ctx, &entries, `
			SELECT * FROM access_logs WHERE timestamp > $1 ORDER BY timestamp, seq
		`, *since)
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Recent returns the newest entries first.
func (r *accessLogRepo) Recent(ctx context.Context, limit int, since *time.Time) ([]model.AccessLogEntry, error) {
	entries := []model.AccessLogEntry{}
	var err error
	if since == nil {
		err = r.db.SelectContext(ctx, &entries, `
			SELECT * FROM access_logs ORDER BY timestamp DESC, seq DESC LIMIT $1
		`, limit)
	} else {
		err = r.db.SelectContext(ctx, &entries, `
			SELECT * FROM access_logs WHERE timestamp > $1
			ORDER BY timestamp DESC, seq DESC LIMIT $2
		`, *since, limit)
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

type countRow struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

// Stats reads every aggregate from one snapshot so total always equals the sum of the groups.
func (r *accessLogRepo) Stats(ctx context.Context) (*model.AccessLogStats, error) {
	stats := &model.AccessLogStats{
		ByClient:   map[string]int{},
		ByParcelle: map[string]int{},
	}

	err := database.WithSnapshot(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM access_logs`); err != nil {
			return err
		}

		var byClient []countRow
		if err := tx.SelectContext(ctx, &byClient, `
			SELECT client_name AS key, COUNT(*) AS count FROM access_logs GROUP BY client_name
		`); err != nil {
			return err
		}
		for _, row := range byClient {
			stats.ByClient[row.Key] = row.Count
		}

		var byParcelle []countRow
		if err := tx.SelectContext(ctx, &byParcelle, `
			SELECT parcelle_id AS key, COUNT(*) AS count FROM access_logs GROUP BY parcelle_id
		`); err != nil {
			return err
		}
		for _, row := range byParcelle {
			stats.ByParcelle[row.Key] = row.Count
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
