package model

import (
	"strings"
	"time"
)

const (
	DocumentTypeSurveillance = "surveillance"
	SuffixSentViaEmail       = "_sent_via_email"
	SuffixSentViaWhatsApp    = "_sent_via_whatsapp"
)

// LoggedDocumentType encodes the delivery channel into the logged document type.
func LoggedDocumentType(documentType string, channel Channel) string {
	switch channel {
	case ChannelEmail:
		return documentType + SuffixSentViaEmail
	case ChannelWhatsApp:
		return documentType + SuffixSentViaWhatsApp
	}
	return documentType
}

// BaseDocumentType strips any channel suffix.
func BaseDocumentType(logged string) string {
	for _, suffix := range []string{SuffixSentViaEmail, SuffixSentViaWhatsApp} {
		if strings.HasSuffix(logged, suffix) {
			return strings.TrimSuffix(logged, suffix)
		}
	}
	return logged
}

type AccessLogEntry struct {
	ID           string    `db:"id" json:"id"`
	Seq          int64     `db:"seq" json:"-"`
	Code         string    `db:"code" json:"code"`
	ClientName   string    `db:"client_name" json:"client_name"`
	ParcelleID   string    `db:"parcelle_id" json:"parcelle_id"`
	ParcelleNom  string    `db:"parcelle_nom" json:"parcelle_nom"`
	DocumentType string    `db:"document_type" json:"document_type"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
}

type AccessLogStats struct {
	Total      int            `json:"total"`
	ByClient   map[string]int `json:"by_client"`
	ByParcelle map[string]int `json:"by_parcelle"`
}

// RecentAccess carries a relative time label computed when the entry is read.
type RecentAccess struct {
	AccessLogEntry
	RelativeTime string `json:"relative_time"`
}
