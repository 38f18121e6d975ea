package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/audit"
	"github.com/songon-extension/access-server/internal/config"
	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/storage"
	"github.com/songon-extension/access-server/internal/util"
	"github.com/songon-extension/access-server/internal/watermark"
)

var extensionByType = map[string]string{
	watermark.ContentTypePDF:  "pdf",
	watermark.ContentTypePNG:  "png",
	watermark.ContentTypeJPEG: "jpg",
	watermark.ContentTypeWebP: "webp",
}

// DocumentService is the document vault: per-parcel files grouped by document type.
// Uploads append; nothing is overwritten.
type DocumentService struct {
	docRepo      repository.DocumentRepository
	parcelleRepo repository.ParcelleRepository
	store        storage.Storage
}

func NewDocumentService(
	docRepo repository.DocumentRepository,
	parcelleRepo repository.ParcelleRepository,
	store storage.Storage,
) *DocumentService {
	return &DocumentService{
		docRepo:      docRepo,
		parcelleRepo: parcelleRepo,
		store:        store,
	}
}

// Upload stores one file under parcelleID and documentType. Only PDF, PNG, JPEG and
// WebP are accepted since prospects can only receive formats that can be watermarked.
func (s *DocumentService) Upload(ctx context.Context, parcelleID, documentType, originalName string, r io.Reader) (*model.DocumentFile, error) {
	if !util.IsValidSlug(documentType) || documentType == model.DocumentTypeSurveillance {
		return nil, apperrors.InvalidInput("document_type", "must be a simple identifier")
	}
	if _, err := s.requireParcelle(ctx, parcelleID); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(io.LimitReader(r, config.MaxDocumentSize+1))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidInput, "Failed to read upload", err)
	}
	if len(content) == 0 {
		return nil, apperrors.MissingRequired("file")
	}
	if len(content) > config.MaxDocumentSize {
		return nil, apperrors.InvalidInput("file", "document exceeds 25 MB")
	}

	contentType := watermark.Detect(content)
	ext, ok := extensionByType[contentType]
	if !ok {
		return nil, apperrors.UnsupportedDocument(contentType)
	}

	id := uuid.NewString()
	objectPath := storage.DocumentPath(parcelleID, documentType, id, ext)

	stored, err := s.store.Upload(ctx, objectPath, bytes.NewReader(content))
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	doc, err := s.docRepo.Create(ctx, model.CreateDocumentFileParams{
		ID:           id,
		ParcelleID:   parcelleID,
		DocumentType: documentType,
		Filename:     objectPath,
		OriginalName: cleanOriginalName(originalName, documentType, ext),
		ContentType:  contentType,
		SizeBytes:    stored.Size,
		Checksum:     stored.Checksum,
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, objectPath); delErr != nil {
			log.Warn().Err(delErr).Str("path", objectPath).Msg("failed to remove orphaned upload")
		}
		return nil, apperrors.Database(err)
	}

	audit.LogContext(ctx, audit.Event{
		Type:       audit.EventDocumentUpload,
		ParcelleID: parcelleID,
		Details:    map[string]interface{}{"document_type": documentType, "size": doc.SizeBytes},
	})
	return doc, nil
}

// Summaries lists document types with at least one file. It reveals metadata only.
func (s *DocumentService) Summaries(ctx context.Context, parcelleID string) ([]model.DocumentSummary, error) {
	if _, err := s.requireParcelle(ctx, parcelleID); err != nil {
		return nil, err
	}
	summaries, err := s.docRepo.Summaries(ctx, parcelleID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return summaries, nil
}

// Files groups every file of a parcel by type, each list in upload order.
func (s *DocumentService) Files(ctx context.Context, parcelleID string) (map[string][]model.DocumentFile, error) {
	if _, err := s.requireParcelle(ctx, parcelleID); err != nil {
		return nil, err
	}
	docs, err := s.docRepo.ListByParcelle(ctx, parcelleID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	out := make(map[string][]model.DocumentFile)
	for _, d := range docs {
		out[d.DocumentType] = append(out[d.DocumentType], d)
	}
	return out, nil
}

// Pick selects the file to deliver: fileID when given, else the first upload of the type.
func (s *DocumentService) Pick(ctx context.Context, parcelleID, documentType, fileID string) (*model.DocumentFile, error) {
	if fileID != "" {
		doc, err := s.docRepo.FindByID(ctx, parcelleID, fileID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if doc == nil || doc.DocumentType != documentType {
			return nil, apperrors.NotFound("Document")
		}
		return doc, nil
	}

	docs, err := s.docRepo.ListByType(ctx, parcelleID, documentType)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if len(docs) == 0 {
		return nil, apperrors.NotFound("Document")
	}
	return &docs[0], nil
}

// Read loads the original bytes of a vault file.
func (s *DocumentService) Read(ctx context.Context, doc *model.DocumentFile) ([]byte, error) {
	rc, err := s.store.Download(ctx, doc.Filename)
	if errors.Is(err, storage.ErrNotExist) {
		log.Error().Str("documentId", doc.ID).Str("path", doc.Filename).Msg("vault file missing from storage")
		return nil, apperrors.NotFound("Document")
	}
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, config.MaxDocumentSize+1))
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return content, nil
}

func (s *DocumentService) Delete(ctx context.Context, parcelleID, fileID string) error {
	doc, err := s.docRepo.Delete(ctx, parcelleID, fileID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("Document")
	}
	if err != nil {
		return apperrors.Database(err)
	}

	if err := s.store.Delete(ctx, doc.Filename); err != nil {
		log.Warn().Err(err).Str("path", doc.Filename).Msg("failed to delete vault file bytes")
	}

	audit.LogContext(ctx, audit.Event{
		Type:       audit.EventDocumentDelete,
		ParcelleID: parcelleID,
		Details:    map[string]interface{}{"document_type": doc.DocumentType, "document_id": doc.ID},
	})
	return nil
}

// PurgeParcelle removes stored bytes of every file of a parcel. Rows go with the
// parcel through ON DELETE CASCADE.
func (s *DocumentService) PurgeParcelle(ctx context.Context, parcelleID string) {
	docs, err := s.docRepo.ListByParcelle(ctx, parcelleID)
	if err != nil {
		log.Warn().Err(err).Str("parcelleId", parcelleID).Msg("failed to list documents for purge")
		return
	}
	for _, d := range docs {
		if err := s.store.Delete(ctx, d.Filename); err != nil {
			log.Warn().Err(err).Str("path", d.Filename).Msg("failed to delete vault file bytes")
		}
	}
}

func (s *DocumentService) requireParcelle(ctx context.Context, parcelleID string) (*model.Parcelle, error) {
	p, err := s.parcelleRepo.FindByID(ctx, parcelleID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if p == nil {
		return nil, apperrors.NotFound("Parcelle")
	}
	return p, nil
}

func cleanOriginalName(name, documentType, ext string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return documentType + "." + ext
	}
	return name
}
