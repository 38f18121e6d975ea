package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songon-extension/access-server/internal/model"
)

var accessLogCols = []string{"id", "seq", "code", "client_name", "parcelle_id", "parcelle_nom", "document_type", "timestamp"}

func TestAccessLogRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccessLogRepository(db)

	ts := time.Now()
	mock.ExpectExec("INSERT INTO access_logs").
		WithArgs("log-1", "ABCD2345", "Awa Koné", "P1", "Lot 12", "acd", ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), model.AccessLogEntry{
		ID: "log-1", Code: "ABCD2345", ClientName: "Awa Koné",
		ParcelleID: "P1", ParcelleNom: "Lot 12", DocumentType: "acd", Timestamp: ts,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessLogRepository_List(t *testing.T) {
	t.Run("without since", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccessLogRepository(db)

		mock.ExpectQuery("SELECT \\* FROM access_logs ORDER BY timestamp, seq").
			WillReturnRows(sqlmock.NewRows(accessLogCols).
				AddRow("log-1", 1, "ABCD2345", "Awa", "P1", "Lot 12", "acd", time.Now()).
				AddRow("log-2", 2, "ABCD2345", "Awa", "P1", "Lot 12", "plan", time.Now()))

		entries, err := repo.List(context.Background(), nil)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.Equal(t, "log-1", entries[0].ID)
	})

	t.Run("with since", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccessLogRepository(db)

		since := time.Now().Add(-time.Hour)
		mock.ExpectQuery("WHERE timestamp > \\$1").
			WithArgs(since).
			WillReturnRows(sqlmock.NewRows(accessLogCols))

		entries, err := repo.List(context.Background(), &since)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestAccessLogRepository_Recent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccessLogRepository(db)

	mock.ExpectQuery("ORDER BY timestamp DESC, seq DESC LIMIT \\$1").
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(accessLogCols).
			AddRow("log-2", 2, "ABCD2345", "Awa", "P1", "Lot 12", "plan", time.Now()))

	entries, err := repo.Recent(context.Background(), 20, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAccessLogRepository_Stats(t *testing.T) {
	t.Run("aggregates inside one snapshot", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccessLogRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM access_logs").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectQuery("GROUP BY client_name").
			WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("Awa", 2).AddRow("Yao", 1))
		mock.ExpectQuery("GROUP BY parcelle_id").
			WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("P1", 3))
		mock.ExpectCommit()

		stats, err := repo.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, map[string]int{"Awa": 2, "Yao": 1}, stats.ByClient)
		assert.Equal(t, map[string]int{"P1": 3}, stats.ByParcelle)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccessLogRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM access_logs").WillReturnError(errors.New("boom"))
		mock.ExpectRollback()

		_, err := repo.Stats(context.Background())
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
