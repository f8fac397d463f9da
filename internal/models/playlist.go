package models

import (
	"net/url"
	"strings"

	"gorm.io/gorm"
)

// Playlist represents a monitored YouTube Music playlist.
type Playlist struct {
	BaseModel

	// URL is the playlist URL as submitted by the user.
	// Must be unique across all playlists.
	URL string `gorm:"uniqueIndex;not null;size:2048" json:"url"`

	// Name is a user-friendly display name. Falls back to the title
	// reported by the listing tool when the user omits it.
	Name string `gorm:"size:255" json:"name"`

	// Active indicates whether this playlist is included in scheduled scans.
	// Pointer so "not set" defaults to true.
	Active *bool `gorm:"default:true" json:"active"`

	// LastCheckedAt is when this playlist was last scanned.
	LastCheckedAt *Time `json:"last_checked_at,omitempty"`

	// Videos is the relationship to tracked videos in this playlist.
	// Removing a playlist cascades to its videos.
	Videos []TrackedVideo `gorm:"foreignKey:PlaylistID;constraint:OnDelete:CASCADE" json:"videos,omitempty"`
}

// TableName returns the table name for Playlist.
func (Playlist) TableName() string {
	return "playlists"
}

// IsActive reports whether the playlist participates in scheduled scans.
func (p *Playlist) IsActive() bool {
	return BoolVal(p.Active)
}

// DisplayName returns the name, falling back to the URL when unnamed.
func (p *Playlist) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.URL
}

// Sanitize trims whitespace and decodes HTML-escaped ampersands that
// commonly sneak into copy-pasted playlist URLs.
func (p *Playlist) Sanitize() {
	p.URL = strings.ReplaceAll(strings.TrimSpace(p.URL), "&amp;", "&")
	p.Name = strings.TrimSpace(p.Name)
}

// Validate performs basic validation on the playlist.
func (p *Playlist) Validate() error {
	p.Sanitize()

	if p.URL == "" {
		return ErrURLRequired
	}
	u, err := url.Parse(p.URL)
	if err != nil {
		return ErrInvalidPlaylistURL
	}
	if u.Query().Get("list") == "" {
		return ErrInvalidPlaylistURL
	}
	return nil
}

// PlaylistID extracts the external playlist identifier from the URL.
func (p *Playlist) PlaylistID() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}

// BeforeCreate is a GORM hook that validates the playlist and generates a ULID.
func (p *Playlist) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}
