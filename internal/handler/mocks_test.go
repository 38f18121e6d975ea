package handler

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/notify"
	"github.com/songon-extension/access-server/internal/storage"
)

type mockCodeRepo struct {
	mock.Mock
}

func (m *mockCodeRepo) Insert(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessCode), args.Error(1)
}

func (m *mockCodeRepo) FindByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessCode), args.Error(1)
}

func (m *mockCodeRepo) FindByID(ctx context.Context, id string) (*model.AccessCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessCode), args.Error(1)
}

func (m *mockCodeRepo) List(ctx context.Context, filter model.AccessCodeFilter) ([]model.AccessCode, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.AccessCode), args.Error(1)
}

func (m *mockCodeRepo) CountFiltered(ctx context.Context, filter model.AccessCodeFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockCodeRepo) Revoke(ctx context.Context, id string) (*model.AccessCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessCode), args.Error(1)
}

func (m *mockCodeRepo) UpdateCamera(ctx context.Context, id string, params model.UpdateCameraParams) (*model.AccessCode, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessCode), args.Error(1)
}

func (m *mockCodeRepo) Counts(ctx context.Context, now time.Time) (*model.AccessCodeCounts, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessCodeCounts), args.Error(1)
}

type mockParcelleRepo struct {
	mock.Mock
}

func (m *mockParcelleRepo) FindByID(ctx context.Context, id string) (*model.Parcelle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Parcelle), args.Error(1)
}

func (m *mockParcelleRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Parcelle, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]model.Parcelle), args.Error(1)
}

func (m *mockParcelleRepo) List(ctx context.Context, statut model.ParcelleStatut) ([]model.Parcelle, error) {
	args := m.Called(ctx, statut)
	return args.Get(0).([]model.Parcelle), args.Error(1)
}

func (m *mockParcelleRepo) Upsert(ctx context.Context, params model.UpsertParcelleParams) (*model.Parcelle, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Parcelle), args.Error(1)
}

func (m *mockParcelleRepo) UpdateStatut(ctx context.Context, id string, statut model.ParcelleStatut) (*model.Parcelle, error) {
	args := m.Called(ctx, id, statut)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Parcelle), args.Error(1)
}

func (m *mockParcelleRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockDocumentRepo struct {
	mock.Mock
}

func (m *mockDocumentRepo) Create(ctx context.Context, params model.CreateDocumentFileParams) (*model.DocumentFile, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentFile), args.Error(1)
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, parcelleID, id string) (*model.DocumentFile, error) {
	args := m.Called(ctx, parcelleID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentFile), args.Error(1)
}

func (m *mockDocumentRepo) ListByParcelle(ctx context.Context, parcelleID string) ([]model.DocumentFile, error) {
	args := m.Called(ctx, parcelleID)
	return args.Get(0).([]model.DocumentFile), args.Error(1)
}

func (m *mockDocumentRepo) ListByType(ctx context.Context, parcelleID, documentType string) ([]model.DocumentFile, error) {
	args := m.Called(ctx, parcelleID, documentType)
	return args.Get(0).([]model.DocumentFile), args.Error(1)
}

func (m *mockDocumentRepo) Summaries(ctx context.Context, parcelleID string) ([]model.DocumentSummary, error) {
	args := m.Called(ctx, parcelleID)
	return args.Get(0).([]model.DocumentSummary), args.Error(1)
}

func (m *mockDocumentRepo) Delete(ctx context.Context, parcelleID, id string) (*model.DocumentFile, error) {
	args := m.Called(ctx, parcelleID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentFile), args.Error(1)
}

type mockAccessLogRepo struct {
	mock.Mock
}

func (m *mockAccessLogRepo) Insert(ctx context.Context, entry model.AccessLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockAccessLogRepo) List(ctx context.Context, since *time.Time) ([]model.AccessLogEntry, error) {
	args := m.Called(ctx, since)
	return args.Get(0).([]model.AccessLogEntry), args.Error(1)
}

func (m *mockAccessLogRepo) Recent(ctx context.Context, limit int, since *time.Time) ([]model.AccessLogEntry, error) {
	args := m.Called(ctx, limit, since)
	return args.Get(0).([]model.AccessLogEntry), args.Error(1)
}

func (m *mockAccessLogRepo) Stats(ctx context.Context) (*model.AccessLogStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessLogStats), args.Error(1)
}

type mockCodeRequestRepo struct {
	mock.Mock
}

func (m *mockCodeRequestRepo) Create(ctx context.Context, params model.CreateCodeRequestParams) (*model.CodeRequest, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CodeRequest), args.Error(1)
}

func (m *mockCodeRequestRepo) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]model.CodeRequest, error) {
	args := m.Called(ctx, unreadOnly, limit, offset)
	return args.Get(0).([]model.CodeRequest), args.Error(1)
}

func (m *mockCodeRequestRepo) MarkRead(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockCodeRequestRepo) CountUnread(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminSession), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateAdminSessionParams) (*model.AdminSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminSession), args.Error(1)
}

func (m *mockSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, path string, reader io.Reader) (*storage.UploadResult, error) {
	data, _ := io.ReadAll(reader)
	args := m.Called(ctx, path, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.UploadResult), args.Error(1)
}

func (m *mockStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return io.NopCloser(bytes.NewReader(args.Get(0).([]byte))), args.Error(1)
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *mockStorage) Exists(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

type mockEmailSender struct {
	mock.Mock
}

func (m *mockEmailSender) Send(ctx context.Context, email notify.Email) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
