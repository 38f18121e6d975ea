package handler

import (
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/service"
	"github.com/songon-extension/access-server/internal/util"
)

// PublicHandler serves the routes used by the marketing site: code verification,
// document delivery, surveillance and code requests.
type PublicHandler struct {
	verifier     *service.VerificationService
	portfolio    *service.PortfolioService
	parcelles    *service.ParcelleService
	documents    *service.DocumentService
	delivery     *service.DeliveryService
	surveillance *service.SurveillanceService
	codeRequests *service.CodeRequestService

	verifyLimit      func(http.Handler) http.Handler
	codeRequestLimit func(http.Handler) http.Handler
}

func NewPublicHandler(
	verifier *service.VerificationService,
	portfolio *service.PortfolioService,
	parcelles *service.ParcelleService,
	documents *service.DocumentService,
	delivery *service.DeliveryService,
	surveillance *service.SurveillanceService,
	codeRequests *service.CodeRequestService,
	verifyLimit, codeRequestLimit func(http.Handler) http.Handler,
) *PublicHandler {
	return &PublicHandler{
		verifier:         verifier,
		portfolio:        portfolio,
		parcelles:        parcelles,
		documents:        documents,
		delivery:         delivery,
		surveillance:     surveillance,
		codeRequests:     codeRequests,
		verifyLimit:      verifyLimit,
		codeRequestLimit: codeRequestLimit,
	}
}

func (h *PublicHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/parcelles", h.ListParcelles)
	r.Get("/parcelles/{parcelleID}", h.GetParcelle)
	r.Get("/parcelles/{parcelleID}/documents", h.ListDocuments)

	r.Group(func(r chi.Router) {
		if h.verifyLimit != nil {
			r.Use(h.verifyLimit)
		}
		r.Post("/documents/verify-code", h.VerifyCode)
		r.Post("/documents/verify-profile", h.VerifyProfile)
		r.Post("/documents/get-owner-parcelles", h.OwnerParcelles)
		r.Get("/documents/{parcelleID}/{documentType}", h.GetDocument)
		r.Post("/documents/send", h.SendDocument)
		r.Post("/documents/send-email", h.SendEmail)
		r.Post("/surveillance/access", h.SurveillanceAccess)
	})

	r.With(limitOrPass(h.codeRequestLimit)).Post("/code-requests", h.CreateCodeRequest)

	return r
}

func limitOrPass(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

type codeParcelleRequest struct {
	Code       string `json:"code" validate:"required,max=32"`
	ParcelleID string `json:"parcelle_id" validate:"required,slug"`
}

// profileResponse is the wire form of a granted decision. IsExpired is always false
// here; an expired code is answered with CODE_EXPIRED and details.is_expired.
type profileResponse struct {
	Valid                 bool              `json:"valid"`
	ParcelleID            string            `json:"parcelle_id"`
	ProfileType           model.ProfileType `json:"profile_type"`
	ClientName            string            `json:"client_name"`
	IsExpired             bool              `json:"is_expired"`
	ShowWatermark         bool              `json:"show_watermark"`
	ExpiresAt             *time.Time        `json:"expires_at,omitempty"`
	DaysRemaining         any               `json:"days_remaining"`
	CanAccessSurveillance bool              `json:"can_access_surveillance"`
}

func newProfileResponse(d *model.Decision) profileResponse {
	return profileResponse{
		Valid:                 true,
		ParcelleID:            d.ParcelleID,
		ProfileType:           d.ProfileType,
		ClientName:            d.ClientName,
		ShowWatermark:         d.ShowWatermark,
		ExpiresAt:             d.ExpiresAt,
		DaysRemaining:         d.DaysRemainingValue(),
		CanAccessSurveillance: d.CanAccessSurveillance,
	}
}

// POST /api/documents/verify-code
func (h *PublicHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req codeParcelleRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.verifier.Verify(r.Context(), req.Code, req.ParcelleID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":          true,
		"client_name":    decision.ClientName,
		"profile_type":   decision.ProfileType,
		"days_remaining": decision.DaysRemainingValue(),
	})
}

// POST /api/documents/verify-profile
func (h *PublicHandler) VerifyProfile(w http.ResponseWriter, r *http.Request) {
	var req codeParcelleRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.verifier.Verify(r.Context(), req.Code, req.ParcelleID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newProfileResponse(decision))
}

// POST /api/documents/get-owner-parcelles
func (h *PublicHandler) OwnerParcelles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code" validate:"required,max=32"`
	}
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	portfolio, err := h.portfolio.Resolve(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, portfolio)
}

// GET /api/parcelles
func (h *PublicHandler) ListParcelles(w http.ResponseWriter, r *http.Request) {
	parcelles, err := h.parcelles.List(r.Context(), model.ParcelleStatut(r.URL.Query().Get("statut")))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"parcelles": parcelles,
		"total":     len(parcelles),
	})
}

// GET /api/parcelles/{parcelleID}
func (h *PublicHandler) GetParcelle(w http.ResponseWriter, r *http.Request) {
	parcelle, err := h.parcelles.Get(r.Context(), chi.URLParam(r, "parcelleID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, parcelle)
}

// GET /api/parcelles/{parcelleID}/documents lists document types, never their content.
func (h *PublicHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.documents.Summaries(r.Context(), chi.URLParam(r, "parcelleID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"available_documents": summaries})
}

// GET /api/documents/{parcelleID}/{documentType}?code=&action=preview|download&file_id=
func (h *PublicHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	action := model.Action(q.Get("action"))
	if action == "" {
		action = model.ActionPreview
	}
	fileID := q.Get("file_id")
	if fileID != "" && util.Validator().Var(fileID, "uuid") != nil {
		writeError(w, apperrors.InvalidInput("file_id", "must be a UUID"))
		return
	}

	doc, err := h.delivery.Fetch(r.Context(), service.DocumentRequest{
		Code:         q.Get("code"),
		ParcelleID:   chi.URLParam(r, "parcelleID"),
		DocumentType: chi.URLParam(r, "documentType"),
		FileID:       fileID,
		Action:       action,
	})
	if err != nil {
		writeDeliveryError(w, r, err)
		return
	}

	disposition := "inline"
	if action == model.ActionDownload {
		disposition = "attachment"
	}

	h.writeDocument(w, doc, disposition)
}

func (h *PublicHandler) writeDocument(w http.ResponseWriter, doc *service.DeliveredDocument, disposition string) {
	header := w.Header()
	header.Set("Content-Type", doc.ContentType)
	header.Set("Content-Length", strconv.Itoa(len(doc.Content)))
	header.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": doc.Filename}))
	header.Set("Cache-Control", "no-store")
	header.Set("X-Watermarked", strconv.FormatBool(doc.Watermarked))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Content)
}

// writeDeliveryError logs failures that the audit log does not already record.
func writeDeliveryError(w http.ResponseWriter, r *http.Request, err error) {
	if !apperrors.IsAuthorizationFailure(err) {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("document delivery failed")
	}
	writeError(w, err)
}

type sendRequest struct {
	Code         string `json:"code" validate:"required,max=32"`
	ParcelleID   string `json:"parcelle_id" validate:"required,slug"`
	DocumentType string `json:"document_type" validate:"required,slug"`
	FileID       string `json:"file_id" validate:"omitempty,uuid"`
	Channel      string `json:"channel" validate:"required,oneof=email whatsapp"`
	Recipient    string `json:"recipient" validate:"max=254"`
}

// POST /api/documents/send
func (h *PublicHandler) SendDocument(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.send(w, r, service.SendRequest{
		Code:         req.Code,
		ParcelleID:   req.ParcelleID,
		DocumentType: req.DocumentType,
		FileID:       req.FileID,
		Channel:      model.Channel(req.Channel),
		Recipient:    req.Recipient,
	})
}

// POST /api/documents/send-email is kept for the site's email form.
func (h *PublicHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code         string `json:"code" validate:"required,max=32"`
		ParcelleID   string `json:"parcelle_id" validate:"required,slug"`
		DocumentType string `json:"document_type" validate:"required,slug"`
		Email        string `json:"email" validate:"omitempty,email"`
	}
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.send(w, r, service.SendRequest{
		Code:         req.Code,
		ParcelleID:   req.ParcelleID,
		DocumentType: req.DocumentType,
		Channel:      model.ChannelEmail,
		Recipient:    req.Email,
	})
}

func (h *PublicHandler) send(w http.ResponseWriter, r *http.Request, req service.SendRequest) {
	result, err := h.delivery.Send(r.Context(), req)
	if err != nil {
		writeDeliveryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /api/surveillance/access
func (h *PublicHandler) SurveillanceAccess(w http.ResponseWriter, r *http.Request) {
	var req codeParcelleRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	grant, err := h.surveillance.RequestStream(r.Context(), req.Code, req.ParcelleID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, grant)
}

// POST /api/code-requests
func (h *PublicHandler) CreateCodeRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nom        string `json:"nom" validate:"required,max=100"`
		Prenom     string `json:"prenom" validate:"required,max=100"`
		WhatsApp   string `json:"whatsapp" validate:"required,phone"`
		ParcelleID string `json:"parcelle_id" validate:"omitempty,slug"`
	}
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.codeRequests.Create(r.Context(), service.CodeRequestInput{
		Nom:        req.Nom,
		Prenom:     req.Prenom,
		WhatsApp:   req.WhatsApp,
		ParcelleID: req.ParcelleID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      created.ID,
		"message": "Votre demande a bien été envoyée, nous vous contacterons sur WhatsApp",
	})
}
