package domain

import (
	"time"
)

// Image represents one stored blob plus its capture provenance.
// FileHash is the SHA-256 of the raw bytes and is the sole deduplication
// key across the whole corpus: several Image rows may share a FileHash
// (re-captured from different pages) but never map to distinct blobs for
// the same bytes.
type Image struct {
	ID            string    `gorm:"type:text;primaryKey" json:"id"`
	OriginalURL   string    `gorm:"type:text;not null;index:idx_images_page_url" json:"original_url"`
	R2URL         string    `gorm:"type:text;not null" json:"r2_url"`
	R2Path        string    `gorm:"type:text;not null" json:"r2_path"`
	SourceWebsite string    `gorm:"type:text;not null;index:idx_images_website" json:"source_website"`
	SourcePageURL string    `gorm:"type:text;index:idx_images_page_url" json:"source_page_url"`
	Title         string    `gorm:"type:text" json:"title,omitempty"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	FileSize      int64     `json:"file_size"`
	FileHash      string    `gorm:"type:text;not null;index:idx_images_hash" json:"file_hash"`
	MimeType      string    `gorm:"type:text" json:"mime_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Tags []Tag `gorm:"many2many:image_tags;joinForeignKey:ImageID;joinReferences:TagID" json:"tags,omitempty"`
}

// TableName returns the database table name for Image.
func (Image) TableName() string {
	return "images"
}

// CollectedImage is the projection returned by the list-by-page lookup and
// cached by the capture agent for the lifetime of one page session.
type CollectedImage struct {
	OriginalURL string `json:"original_url"`
	FileHash    string `json:"file_hash"`
	R2Path      string `json:"r2_path"`
}

// WebsiteStat is the derived per-domain aggregate used to populate the
// gallery's website filter. It has no table of its own; it is materialized
// by a GROUP BY over images.
type WebsiteStat struct {
	Domain          string     `json:"domain"`
	ImageCount      int64      `json:"image_count"`
	LastCollectedAt *time.Time `json:"last_collected_at,omitempty"`
}
