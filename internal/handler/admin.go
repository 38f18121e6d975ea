package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/audit"
	"github.com/songon-extension/access-server/internal/config"
	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/middleware"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/service"
)

// multipartOverhead leaves room for the form envelope around an upload.
const multipartOverhead = 1 << 20

type AdminHandler struct {
	adminService *service.AdminService
	codes        *service.AccessCodeService
	verifier     *service.VerificationService
	accessLog    *service.AccessLogService
	parcelles    *service.ParcelleService
	documents    *service.DocumentService
	codeRequests *service.CodeRequestService
	stream       *AccessLogStreamHandler

	sessionMiddleware func(http.Handler) http.Handler
	loginRateLimiter  *middleware.LoginRateLimiter
	uploadLimit       *middleware.BodyLimitMiddleware
	isProduction      bool
}

func NewAdminHandler(
	adminService *service.AdminService,
	codes *service.AccessCodeService,
	verifier *service.VerificationService,
	accessLog *service.AccessLogService,
	parcelles *service.ParcelleService,
	documents *service.DocumentService,
	codeRequests *service.CodeRequestService,
	stream *AccessLogStreamHandler,
	sessionMiddleware func(http.Handler) http.Handler,
	isProduction bool,
) *AdminHandler {
	return &AdminHandler{
		adminService:      adminService,
		codes:             codes,
		verifier:          verifier,
		accessLog:         accessLog,
		parcelles:         parcelles,
		documents:         documents,
		codeRequests:      codeRequests,
		stream:            stream,
		sessionMiddleware: sessionMiddleware,
		loginRateLimiter:  middleware.NewLoginRateLimiter(),
		uploadLimit:       middleware.NewBodyLimitMiddleware(config.MaxDocumentSize + multipartOverhead),
		isProduction:      isProduction,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginRateLimiter.Handler).Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.sessionMiddleware)
		r.Get("/api/session", h.Session)
		r.Get("/api/stats", h.Stats)

		// Access codes
		r.Get("/api/access-codes", h.ListAccessCodes)
		r.Post("/api/access-codes", h.CreateAccessCode)
		r.Post("/api/access-codes/check", h.CheckAccessCode)
		r.Get("/api/access-codes/lookup/{code}", h.LookupAccessCode)
		r.Delete("/api/access-codes/{id}", h.RevokeAccessCode)
		r.Patch("/api/access-codes/{id}/camera", h.UpdateCamera)

		// Audit log
		r.Get("/api/download-logs", h.ListDownloadLogs)
		r.Get("/api/download-logs/stats", h.DownloadLogStats)
		r.Get("/api/access-logs/realtime", h.RecentAccessLogs)
		if h.stream != nil {
			r.Get("/api/access-logs/stream", h.stream.ServeHTTP)
		}

		// Parcels and their vault
		r.Put("/api/parcelles/{parcelleID}", h.UpsertParcelle)
		r.Patch("/api/parcelles/{parcelleID}/status", h.UpdateParcelleStatus)
		r.Delete("/api/parcelles/{parcelleID}", h.DeleteParcelle)
		r.Get("/api/parcelles/{parcelleID}/documents", h.ListParcelleFiles)
		r.With(h.uploadLimit.Handler).Post("/api/parcelles/{parcelleID}/documents/{documentType}", h.UploadDocument)
		r.Delete("/api/parcelles/{parcelleID}/files/{fileID}", h.DeleteDocument)

		// Code requests
		r.Get("/api/notifications", h.ListNotifications)
		r.Patch("/api/notifications/{id}/read", h.MarkNotificationRead)
	})

	return r
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password" validate:"required,max=256"`
	}
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.adminService.Login(r.Context(), req.Password)
	if err != nil {
		log.Error().Err(err).Msg("admin login error")
		writeError(w, err)
		return
	}

	if token == "" {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure})
		writeError(w, apperrors.Unauthorized("Mot de passe invalide"))
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess})
	middleware.SetSessionCookie(w, token, h.isProduction)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.AdminSessionCookie)
	if err == nil && cookie.Value != "" {
		if err := h.adminService.Logout(r.Context(), cookie.Value); err != nil {
			log.Warn().Err(err).Msg("failed to delete admin session")
		}
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout})
	}

	middleware.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) Session(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetAdminSession(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"expiresAt":     session.ExpiresAt,
	})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.GetStats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get stats")
		writeError(w, err)
		return
	}
	if h.stream != nil {
		stats.LiveListeners = h.stream.Listeners()
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListAccessCodes(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	q := r.URL.Query()

	filter := model.AccessCodeFilter{
		ProfileType: model.ProfileType(q.Get("profile_type")),
		ActiveOnly:  q.Get("active") == "true",
		ParcelleID:  q.Get("parcelle_id"),
		Limit:       p.Limit,
		Offset:      p.Offset,
	}
	if filter.ProfileType != "" && !filter.ProfileType.Valid() {
		writeError(w, apperrors.InvalidInput("profile_type", "must be PROSPECT or PROPRIETAIRE"))
		return
	}

	page, err := h.codes.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

type createAccessCodeRequest struct {
	ClientName      string                `json:"client_name" validate:"required,max=200"`
	ClientEmail     string                `json:"client_email" validate:"omitempty,email"`
	ProfileType     string                `json:"profile_type" validate:"required,oneof=PROSPECT PROPRIETAIRE"`
	ParcelleIDs     []string              `json:"parcelle_ids" validate:"dive,slug"`
	ExpiresHours    int                   `json:"expires_hours" validate:"omitempty,min=1,max=8760"`
	CameraEnabled   bool                  `json:"camera_enabled"`
	VideoURL        string                `json:"video_url" validate:"omitempty,url"`
	ParcelleConfigs model.ParcelleConfigs `json:"parcelle_configs"`
}

func (h *AdminHandler) CreateAccessCode(w http.ResponseWriter, r *http.Request) {
	var req createAccessCodeRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	code, err := h.codes.Create(r.Context(), service.CreateAccessCodeInput{
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		ProfileType:     model.ProfileType(req.ProfileType),
		ParcelleIDs:     req.ParcelleIDs,
		ExpiresHours:    req.ExpiresHours,
		CameraEnabled:   req.CameraEnabled,
		VideoURL:        req.VideoURL,
		ParcelleConfigs: req.ParcelleConfigs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, code)
}

// CheckAccessCode reports the precise verification reason the public routes hide.
func (h *AdminHandler) CheckAccessCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code       string `json:"code" validate:"required,max=32"`
		ParcelleID string `json:"parcelle_id" validate:"omitempty,slug"`
	}
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	diagnosis, err := h.verifier.Diagnose(r.Context(), req.Code, req.ParcelleID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, diagnosis)
}

func (h *AdminHandler) LookupAccessCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.codes.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, code)
}

func (h *AdminHandler) RevokeAccessCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.codes.Revoke(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, code)
}

func (h *AdminHandler) UpdateCamera(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CameraEnabled   bool                  `json:"camera_enabled"`
		VideoURL        string                `json:"video_url" validate:"omitempty,url"`
		ParcelleConfigs model.ParcelleConfigs `json:"parcelle_configs"`
	}
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	code, err := h.codes.UpdateCamera(r.Context(), chi.URLParam(r, "id"), service.UpdateCameraInput{
		CameraEnabled:   req.CameraEnabled,
		VideoURL:        req.VideoURL,
		ParcelleConfigs: req.ParcelleConfigs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, code)
}

func (h *AdminHandler) ListDownloadLogs(w http.ResponseWriter, r *http.Request) {
	since, ok := parseSince(r)
	if !ok {
		writeError(w, apperrors.InvalidInput("since", "must be an RFC 3339 timestamp"))
		return
	}

	entries, err := h.accessLog.List(r.Context(), since)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  entries,
		"total": len(entries),
	})
}

func (h *AdminHandler) DownloadLogStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.accessLog.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) RecentAccessLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultRecentLimit
	}
	since, ok := parseSince(r)
	if !ok {
		writeError(w, apperrors.InvalidInput("since", "must be an RFC 3339 timestamp"))
		return
	}

	recent, err := h.accessLog.Recent(r.Context(), limit, since)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  recent,
		"count": len(recent),
	})
}

func (h *AdminHandler) UpsertParcelle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nom             string  `json:"nom" validate:"required,max=200"`
		ReferenceTF     string  `json:"reference_tf" validate:"max=100"`
		Superficie      float64 `json:"superficie" validate:"gte=0"`
		UniteSuperficie string  `json:"unite_superficie" validate:"max=16"`
		Statut          string  `json:"statut" validate:"omitempty,oneof=disponible option vendu"`
	}
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	parcelle, err := h.parcelles.Upsert(r.Context(), chi.URLParam(r, "parcelleID"), service.ParcelleInput{
		Nom:             req.Nom,
		ReferenceTF:     req.ReferenceTF,
		Superficie:      req.Superficie,
		UniteSuperficie: req.UniteSuperficie,
		Statut:          model.ParcelleStatut(req.Statut),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, parcelle)
}

func (h *AdminHandler) UpdateParcelleStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Statut string `json:"statut" validate:"required,oneof=disponible option vendu"`
	}
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	parcelle, err := h.parcelles.UpdateStatut(r.Context(), chi.URLParam(r, "parcelleID"), model.ParcelleStatut(req.Statut))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": parcelle.ID, "statut": parcelle.Statut})
}

func (h *AdminHandler) DeleteParcelle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "parcelleID")
	if err := h.parcelles.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *AdminHandler) ListParcelleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.documents.Files(r.Context(), chi.URLParam(r, "parcelleID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"official_documents": files})
}

// UploadDocument appends one file to a document type. The multipart field is "file".
func (h *AdminHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperrors.MissingRequired("file"))
		return
	}
	defer file.Close()

	doc, err := h.documents.Upload(
		r.Context(),
		chi.URLParam(r, "parcelleID"),
		chi.URLParam(r, "documentType"),
		header.Filename,
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *AdminHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if err := h.documents.Delete(r.Context(), chi.URLParam(r, "parcelleID"), fileID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": fileID})
}

func (h *AdminHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	requests, err := h.codeRequests.List(r.Context(), unreadOnly, p.Limit, p.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	unread, err := h.codeRequests.CountUnread(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  requests,
		"unread": unread,
	})
}

func (h *AdminHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.codeRequests.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
