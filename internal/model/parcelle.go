package model

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type Parcelle struct {
	ID              string         `db:"id" json:"id"`
	Nom             string         `db:"nom" json:"nom"`
	ReferenceTF     string         `db:"reference_tf" json:"reference_tf"`
	Superficie      float64        `db:"superficie" json:"superficie"`
	UniteSuperficie string         `db:"unite_superficie" json:"unite_superficie"`
	Statut          ParcelleStatut `db:"statut" json:"statut"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

type UpsertParcelleParams struct {
	ID              string
	Nom             string
	ReferenceTF     string
	Superficie      float64
	UniteSuperficie string
	Statut          ParcelleStatut
}

// PortfolioEntry is one parcel of an owner portfolio with its display data.
type PortfolioEntry struct {
	ParcelleID      string  `json:"parcelle_id"`
	Nom             string  `json:"nom"`
	ReferenceTF     string  `json:"reference_tf"`
	Superficie      float64 `json:"superficie"`
	UniteSuperficie string  `json:"unite"`
	CameraEnabled   bool    `json:"camera_enabled"`
}

type DocumentFile struct {
	ID           string    `db:"id" json:"id"`
	ParcelleID   string    `db:"parcelle_id" json:"parcelle_id"`
	DocumentType string    `db:"document_type" json:"document_type"`
	Filename     string    `db:"filename" json:"filename"`
	OriginalName string    `db:"original_name" json:"original_name"`
	ContentType  string    `db:"content_type" json:"content_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	Checksum     string    `db:"checksum" json:"checksum"`
	Seq          int64     `db:"seq" json:"-"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}

type CreateDocumentFileParams struct {
	ID           string
	ParcelleID   string
	DocumentType string
	Filename     string
	OriginalName string
	ContentType  string
	SizeBytes    int64
	Checksum     string
}

// DocumentSummary lists one document type that has at least one file.
type DocumentSummary struct {
	Type  string `db:"document_type" json:"type"`
	Label string `db:"-" json:"label"`
	Count int    `db:"count" json:"count"`
}

var documentLabels = map[string]string{
	"acd":               "Arrêté de Concession Définitive (ACD)",
	"plan":              "Plan cadastral / Bornage",
	"titre_foncier":     "Titre Foncier",
	"extrait_cadastral": "Extrait cadastral",
}

// DocumentLabel returns the display label of a document type.
func DocumentLabel(documentType string) string {
	if label, ok := documentLabels[documentType]; ok {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(documentType, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
