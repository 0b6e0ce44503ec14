package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/picvault/picvault/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository handles tag and image-tag association operations.
type TagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new TagRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *TagRepository: repository instance bound to db.
func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Upsert returns the tag with the given name, creating it on first use.
// Name matching is case-sensitive and exact. A concurrent creation of the
// same name is treated as a success: whichever row now exists is returned,
// never a uniqueness-constraint error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: exact tag name.
// Returns:
//   - *domain.Tag: existing or freshly created tag.
//   - error: non-nil if lookup and insert both fail.
func (r *TagRepository) Upsert(ctx context.Context, name string) (*domain.Tag, error) {
	var tag domain.Tag
	err := r.db.WithContext(ctx).First(&tag, "name = ?", name).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	candidate := domain.Tag{ID: uuid.New().String(), Name: name}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&candidate)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return &candidate, nil
	}

	// Lost the race: another writer inserted the name first.
	if err := r.db.WithContext(ctx).First(&tag, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// List returns all tags ordered by name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.Tag: every tag record.
//   - error: non-nil if the query fails.
func (r *TagRepository) List(ctx context.Context) ([]domain.Tag, error) {
	var tags []domain.Tag
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// AddTagToImage associates a tag with an image. Re-adding an existing pair
// is a no-op, not an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imageID: image ID.
//   - tagID: tag ID.
// Returns:
//   - error: non-nil if the insert fails for a reason other than the pair
//     already existing.
func (r *TagRepository) AddTagToImage(ctx context.Context, imageID, tagID string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "image_id"}, {Name: "tag_id"}},
		DoNothing: true,
	}).Create(&domain.ImageTag{ImageID: imageID, TagID: tagID}).Error
}

// RemoveTagFromImage removes an exact association pair. Removing a pair
// that does not exist is a no-op.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imageID: image ID.
//   - tagID: tag ID.
// Returns:
//   - error: non-nil if the delete fails.
func (r *TagRepository) RemoveTagFromImage(ctx context.Context, imageID, tagID string) error {
	return r.db.WithContext(ctx).
		Where("image_id = ? AND tag_id = ?", imageID, tagID).
		Delete(&domain.ImageTag{}).Error
}

// TagIDsForImage returns the ids of all tags carried by an image.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imageID: image ID.
// Returns:
//   - []string: tag ids, possibly empty.
//   - error: non-nil if the query fails.
func (r *TagRepository) TagIDsForImage(ctx context.Context, imageID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&domain.ImageTag{}).
		Where("image_id = ?", imageID).
		Pluck("tag_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
