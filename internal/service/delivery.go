package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/config"
	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/notify"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/telemetry"
	"github.com/songon-extension/access-server/internal/watermark"
)

type DocumentRequest struct {
	Code         string
	ParcelleID   string
	DocumentType string
	FileID       string
	Action       model.Action
}

type SendRequest struct {
	Code         string
	ParcelleID   string
	DocumentType string
	FileID       string
	Channel      model.Channel
	Recipient    string
}

// DeliveredDocument is what leaves the vault for one granted request.
type DeliveredDocument struct {
	Filename    string
	ContentType string
	Content     []byte
	Watermarked bool
}

type SendResult struct {
	Message     string `json:"message"`
	WhatsAppURL string `json:"whatsapp_url,omitempty"`
}

// DeliveryService streams or sends vault documents. Every call verifies the code
// again; a rejected call reads no bytes and writes no access log entry.
type DeliveryService struct {
	verifier        *VerificationService
	documents       *DocumentService
	parcelleRepo    repository.ParcelleRepository
	marker          watermark.Watermarker
	email           notify.EmailSender
	recorder        AccessRecorder
	whatsAppContact string
	now             func() time.Time
}

func NewDeliveryService(
	verifier *VerificationService,
	documents *DocumentService,
	parcelleRepo repository.ParcelleRepository,
	marker watermark.Watermarker,
	email notify.EmailSender,
	recorder AccessRecorder,
	whatsApp *config.WhatsAppConfig,
) *DeliveryService {
	s := &DeliveryService{
		verifier:     verifier,
		documents:    documents,
		parcelleRepo: parcelleRepo,
		marker:       marker,
		email:        email,
		recorder:     recorder,
		now:          time.Now,
	}
	if whatsApp != nil {
		s.whatsAppContact = whatsApp.ContactNumber
	}
	return s
}

// Fetch returns the document for a preview or a download.
func (s *DeliveryService) Fetch(ctx context.Context, req DocumentRequest) (*DeliveredDocument, error) {
	if req.Action != model.ActionPreview && req.Action != model.ActionDownload {
		return nil, apperrors.InvalidInput("action", "must be preview or download")
	}

	decision, err := s.verifier.Verify(ctx, req.Code, req.ParcelleID)
	if err != nil {
		return nil, err
	}

	parcelle, doc, err := s.resolve(ctx, req.ParcelleID, req.DocumentType, req.FileID)
	if err != nil {
		return nil, err
	}

	delivered, err := s.render(ctx, decision, doc)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, newAccessEntry(decision, parcelle, req.DocumentType, s.now()))
	telemetry.RecordGranted(string(req.Action))
	return delivered, nil
}

// Send hands a document over through email or a WhatsApp link.
func (s *DeliveryService) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if !req.Channel.Valid() {
		return nil, apperrors.InvalidInput("channel", "must be email or whatsapp")
	}

	decision, err := s.verifier.Verify(ctx, req.Code, req.ParcelleID)
	if err != nil {
		return nil, err
	}

	parcelle, doc, err := s.resolve(ctx, req.ParcelleID, req.DocumentType, req.FileID)
	if err != nil {
		return nil, err
	}

	var result *SendResult
	switch req.Channel {
	case model.ChannelEmail:
		result, err = s.sendEmail(ctx, decision, parcelle, doc, req)
	case model.ChannelWhatsApp:
		result, err = s.whatsAppHandoff(decision, parcelle, req)
	}
	if err != nil {
		return nil, err
	}

	loggedType := model.LoggedDocumentType(req.DocumentType, req.Channel)
	s.recorder.Record(ctx, newAccessEntry(decision, parcelle, loggedType, s.now()))
	telemetry.RecordGranted("send_" + string(req.Channel))
	return result, nil
}

func (s *DeliveryService) sendEmail(ctx context.Context, d *model.Decision, parcelle *model.Parcelle, doc *model.DocumentFile, req SendRequest) (*SendResult, error) {
	to := strings.TrimSpace(req.Recipient)
	if to == "" {
		to = d.ClientEmail
	}
	if to == "" {
		return nil, apperrors.MissingRequired("recipient")
	}

	delivered, err := s.render(ctx, d, doc)
	if err != nil {
		return nil, err
	}

	content := notify.DocumentEmail{
		ClientName:    d.ClientName,
		ParcelleNom:   parcelle.Nom,
		ParcelleRef:   parcelle.ReferenceTF,
		DocumentLabel: model.DocumentLabel(req.DocumentType),
		Watermarked:   delivered.Watermarked,
		Year:          s.now().Year(),
	}
	body, err := content.Render()
	if err != nil {
		return nil, apperrors.Internal("Failed to render email")
	}

	sendCtx, cancel := context.WithTimeout(ctx, config.DeliveryTimeout)
	defer cancel()

	err = s.email.Send(sendCtx, notify.Email{
		To:      to,
		Subject: content.Subject(),
		HTML:    body,
		Attachments: []notify.Attachment{{
			Filename:    delivered.Filename,
			ContentType: delivered.ContentType,
			Content:     delivered.Content,
		}},
	})
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeEmailNotConfigured {
			return nil, err
		}
		telemetry.DeliveryFailuresTotal.WithLabelValues(string(model.ChannelEmail)).Inc()
		log.Error().Err(err).
			Str("parcelleId", parcelle.ID).
			Str("documentType", req.DocumentType).
			Msg("email delivery failed")
		return nil, apperrors.DeliveryFailed(string(model.ChannelEmail), err)
	}

	return &SendResult{Message: fmt.Sprintf("Document envoyé à %s", to)}, nil
}

func (s *DeliveryService) whatsAppHandoff(d *model.Decision, parcelle *model.Parcelle, req SendRequest) (*SendResult, error) {
	phone := strings.TrimSpace(req.Recipient)
	if phone == "" {
		phone = s.whatsAppContact
	}
	if phone == "" {
		return nil, apperrors.MissingRequired("recipient")
	}

	link, err := notify.WhatsAppLink(phone, notify.WhatsAppMessage{
		ClientName:    d.ClientName,
		ParcelleNom:   parcelle.Nom,
		ParcelleRef:   parcelle.ReferenceTF,
		DocumentLabel: model.DocumentLabel(req.DocumentType),
	})
	if err != nil {
		return nil, apperrors.InvalidInput("recipient", "must be a phone number")
	}

	return &SendResult{
		Message:     "Lien WhatsApp prêt",
		WhatsAppURL: link,
	}, nil
}

func (s *DeliveryService) resolve(ctx context.Context, parcelleID, documentType, fileID string) (*model.Parcelle, *model.DocumentFile, error) {
	parcelle, err := s.parcelleRepo.FindByID(ctx, parcelleID)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if parcelle == nil {
		return nil, nil, apperrors.NotFound("Parcelle")
	}

	doc, err := s.documents.Pick(ctx, parcelleID, documentType, fileID)
	if err != nil {
		return nil, nil, err
	}
	return parcelle, doc, nil
}

// render reads the original and marks it when the decision says so. Marked copies
// are built per request and never stored.
func (s *DeliveryService) render(ctx context.Context, d *model.Decision, doc *model.DocumentFile) (*DeliveredDocument, error) {
	content, err := s.documents.Read(ctx, doc)
	if err != nil {
		return nil, err
	}

	out := &DeliveredDocument{
		Filename:    downloadName(doc),
		ContentType: doc.ContentType,
		Content:     content,
	}
	if !d.ShowWatermark {
		return out, nil
	}

	marked, err := s.marker.Apply(ctx, content, watermark.Stamp{
		ClientName: d.ClientName,
		Code:       d.Code,
		At:         s.now(),
	})
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeUnsupportedDocument {
			return nil, err
		}
		log.Error().Err(err).Str("documentId", doc.ID).Msg("watermarking failed")
		return nil, apperrors.Internal("Failed to prepare document")
	}
	out.Content = marked
	out.Watermarked = true
	return out, nil
}

func downloadName(doc *model.DocumentFile) string {
	if doc.OriginalName != "" {
		return doc.OriginalName
	}
	return doc.DocumentType + path.Ext(doc.Filename)
}
