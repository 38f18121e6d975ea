package model

import "time"

// CodeRequest is a visitor asking the sales team for an access code.
type CodeRequest struct {
	ID         string    `db:"id" json:"id"`
	Nom        string    `db:"nom" json:"nom"`
	Prenom     string    `db:"prenom" json:"prenom"`
	WhatsApp   string    `db:"whatsapp" json:"whatsapp"`
	ParcelleID *string   `db:"parcelle_id" json:"parcelle_id,omitempty"`
	Read       bool      `db:"read" json:"read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type CreateCodeRequestParams struct {
	ID         string
	Nom        string
	Prenom     string
	WhatsApp   string
	ParcelleID *string
}
