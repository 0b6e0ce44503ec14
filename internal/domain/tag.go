package domain

import "time"

// Tag is a user-created label. Name matching is case-sensitive and exact;
// creation is idempotent (inserting an existing name returns the existing
// row). Tags are never destroyed by this core.
type Tag struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null;uniqueIndex:idx_tags_name" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Tag.
func (Tag) TableName() string {
	return "tags"
}

// ImageTag is the image↔tag association row. The composite primary key
// enforces pair uniqueness; re-inserting an existing pair is a no-op.
type ImageTag struct {
	ImageID   string    `gorm:"type:text;primaryKey" json:"image_id"`
	TagID     string    `gorm:"type:text;primaryKey" json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ImageTag.
func (ImageTag) TableName() string {
	return "image_tags"
}
