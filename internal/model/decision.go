package model

import (
	"slices"
	"time"
)

// DenyReason is the precise cause of a rejected verification. Only admins see it.
type DenyReason string

const (
	ReasonGranted   DenyReason = "granted"
	ReasonUnknown   DenyReason = "unknown"
	ReasonRevoked   DenyReason = "revoked"
	ReasonExpired   DenyReason = "expired"
	ReasonNotScoped DenyReason = "not_scoped"
)

const PermanentAccess = "permanent"

// Decision is the single authoritative answer of a verification. Preview, download,
// send and surveillance all read their flags from it.
type Decision struct {
	AccessCodeID          string      `json:"-"`
	Code                  string      `json:"-"`
	ParcelleID            string      `json:"parcelle_id,omitempty"`
	ProfileType           ProfileType `json:"profile_type"`
	ClientName            string      `json:"client_name"`
	ClientEmail           string      `json:"-"`
	ShowWatermark         bool        `json:"show_watermark"`
	ExpiresAt             *time.Time  `json:"expires_at,omitempty"`
	DaysRemaining         *int        `json:"-"`
	CanAccessSurveillance bool        `json:"can_access_surveillance"`
	VideoURL              string      `json:"-"`
	ParcelleIDs           []string    `json:"-"`
	DecidedAt             time.Time   `json:"-"`
}

func (d *Decision) IsPermanent() bool {
	return d.ProfileType == ProfileProprietaire
}

// DaysRemainingValue is the wire form: whole days for prospects, "permanent" for owners.
func (d *Decision) DaysRemainingValue() any {
	if d.DaysRemaining == nil {
		return PermanentAccess
	}
	return *d.DaysRemaining
}

// Evaluate resolves a registry entry against a target parcel at instant now. It has no
// side effects, so two calls with the same inputs always agree.
func Evaluate(code *AccessCode, parcelleID string, now time.Time) (*Decision, DenyReason) {
	d, reason := EvaluateCode(code, now)
	if reason != ReasonGranted {
		return nil, reason
	}
	if !code.Covers(parcelleID) {
		return nil, ReasonNotScoped
	}

	d.ParcelleID = parcelleID
	if d.ProfileType == ProfileProprietaire {
		enabled, url := code.Camera(parcelleID)
		d.CanAccessSurveillance = enabled
		d.VideoURL = ""
		if enabled {
			d.VideoURL = url
		}
	}
	return d, ReasonGranted
}

// EvaluateCode checks existence, revocation and expiry without any parcel scope.
func EvaluateCode(code *AccessCode, now time.Time) (*Decision, DenyReason) {
	if code == nil {
		return nil, ReasonUnknown
	}
	if !code.Active {
		return nil, ReasonRevoked
	}
	if code.IsExpired(now) {
		return nil, ReasonExpired
	}

	d := &Decision{
		AccessCodeID:  code.ID,
		Code:          code.Code,
		ProfileType:   code.ProfileType,
		ClientName:    code.ClientName,
		ClientEmail:   code.ClientEmail,
		ShowWatermark: code.ProfileType == ProfileProspect,
		ParcelleIDs:   slices.Clone([]string(code.ParcelleIDs)),
		DecidedAt:     now,
	}

	if code.ProfileType == ProfileProspect {
		d.ExpiresAt = code.ExpiresAt
		if code.ExpiresAt != nil {
			days := int(code.ExpiresAt.Sub(now) / (24 * time.Hour))
			d.DaysRemaining = &days
		}
	} else {
		d.CanAccessSurveillance = code.CameraEnabled
		if code.CameraEnabled {
			d.VideoURL = code.VideoURL
		}
	}
	return d, ReasonGranted
}
