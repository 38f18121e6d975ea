package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"
)

// ParcelleConfig overrides the code-level camera settings for one parcel of an owner portfolio.
type ParcelleConfig struct {
	CameraEnabled bool   `json:"camera_enabled"`
	VideoURL      string `json:"video_url,omitempty"`
}

// ParcelleConfigs is stored as JSONB keyed by parcel id.
type ParcelleConfigs map[string]ParcelleConfig

func (c ParcelleConfigs) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

func (c *ParcelleConfigs) Scan(value any) error {
	if value == nil {
		*c = ParcelleConfigs{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for ParcelleConfigs: %T", value)
	}
	out := ParcelleConfigs{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode parcelle_configs: %w", err)
	}
	*c = out
	return nil
}

type AccessCode struct {
	ID              string          `db:"id" json:"id"`
	Code            string          `db:"code" json:"code"`
	ClientName      string          `db:"client_name" json:"client_name"`
	ClientEmail     string          `db:"client_email" json:"client_email"`
	ProfileType     ProfileType     `db:"profile_type" json:"profile_type"`
	ParcelleIDs     pq.StringArray  `db:"parcelle_ids" json:"parcelle_ids"`
	ParcelleConfigs ParcelleConfigs `db:"parcelle_configs" json:"parcelle_configs"`
	ExpiresAt       *time.Time      `db:"expires_at" json:"expires_at"`
	CameraEnabled   bool            `db:"camera_enabled" json:"camera_enabled"`
	VideoURL        string          `db:"video_url" json:"video_url,omitempty"`
	Active          bool            `db:"active" json:"active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	RevokedAt       *time.Time      `db:"revoked_at" json:"revoked_at,omitempty"`
}

// IsWildcard reports whether the code covers every parcel. Only prospect codes issued
// without any parcel are wildcards.
func (c *AccessCode) IsWildcard() bool {
	return c.ProfileType == ProfileProspect && len(c.ParcelleIDs) == 0
}

func (c *AccessCode) Covers(parcelleID string) bool {
	return c.IsWildcard() || slices.Contains(c.ParcelleIDs, parcelleID)
}

// IsExpired is true from expires_at onwards. Owner codes never expire.
func (c *AccessCode) IsExpired(now time.Time) bool {
	if c.ProfileType != ProfileProspect || c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}

// IsUsable is recomputed on every call and never stored.
func (c *AccessCode) IsUsable(now time.Time) bool {
	return c.Active && !c.IsExpired(now)
}

// Camera returns the effective stream settings for one parcel.
func (c *AccessCode) Camera(parcelleID string) (bool, string) {
	if cfg, ok := c.ParcelleConfigs[parcelleID]; ok {
		url := cfg.VideoURL
		if url == "" {
			url = c.VideoURL
		}
		return cfg.CameraEnabled, url
	}
	return c.CameraEnabled, c.VideoURL
}

type CreateAccessCodeParams struct {
	ID              string
	Code            string
	ClientName      string
	ClientEmail     string
	ProfileType     ProfileType
	ParcelleIDs     []string
	ParcelleConfigs ParcelleConfigs
	ExpiresAt       *time.Time
	CameraEnabled   bool
	VideoURL        string
}

type UpdateCameraParams struct {
	CameraEnabled   bool
	VideoURL        string
	ParcelleConfigs ParcelleConfigs
}

// AccessCodeFilter narrows the admin listing. Zero values match everything.
type AccessCodeFilter struct {
	ProfileType ProfileType
	ActiveOnly  bool
	ParcelleID  string
	Limit       int
	Offset      int
}

type AccessCodeCounts struct {
	Total         int `db:"total" json:"total"`
	Active        int `db:"active" json:"active"`
	Revoked       int `db:"revoked" json:"revoked"`
	Expired       int `db:"expired" json:"expired"`
	Prospects     int `db:"prospects" json:"prospects"`
	Proprietaires int `db:"proprietaires" json:"proprietaires"`
}
