package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/picvault/picvault/internal/domain"
	"github.com/picvault/picvault/internal/urlutil"
	"gorm.io/gorm"
)

// ImageRepository handles image metadata operations.
type ImageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new ImageRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ImageRepository: repository instance bound to db.
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// ImageFilter describes the gallery query surface. TagIDs use intersection
// semantics: a matching image must carry every listed tag.
type ImageFilter struct {
	Websites []string
	TagIDs   []string
	Offset   int
	Limit    int
}

// Insert persists a new image record, normalizing its URLs first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - img: image record to persist; ID is assigned when empty.
// Returns:
//   - error: ErrValidation when a required field is missing, otherwise the
//     insert error if any.
func (r *ImageRepository) Insert(ctx context.Context, img *domain.Image) error {
	required := []struct {
		name  string
		value string
	}{
		{"original_url", img.OriginalURL},
		{"r2_url", img.R2URL},
		{"r2_path", img.R2Path},
		{"source_website", img.SourceWebsite},
		{"file_hash", img.FileHash},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: missing required field: %s", domain.ErrValidation, f.name)
		}
	}

	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	img.OriginalURL = urlutil.Normalize(img.OriginalURL)
	img.SourcePageURL = urlutil.Normalize(img.SourcePageURL)
	if img.Title == "" {
		img.Title = urlutil.FileName(img.OriginalURL)
	}

	return r.db.WithContext(ctx).Create(img).Error
}

// FindByPageAndURL retrieves an image by normalized page URL and original
// URL, used to skip re-capturing the same image on the same page.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - pageURL: page URL, normalized before matching.
//   - originalURL: image source URL, normalized before matching.
// Returns:
//   - *domain.Image: matching record, or nil when there is none.
//   - error: non-nil if the query fails.
func (r *ImageRepository) FindByPageAndURL(ctx context.Context, pageURL, originalURL string) (*domain.Image, error) {
	var img domain.Image
	err := r.db.WithContext(ctx).
		Where("source_page_url = ? AND original_url = ?", urlutil.Normalize(pageURL), urlutil.Normalize(originalURL)).
		First(&img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// ListByPageURL returns the collected-image projections for one page in a
// single round trip, used to warm the capture agent's session cache.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - pageURL: page URL, normalized before matching.
// Returns:
//   - []domain.CollectedImage: original URL, hash and blob path per row.
//   - error: non-nil if the query fails.
func (r *ImageRepository) ListByPageURL(ctx context.Context, pageURL string) ([]domain.CollectedImage, error) {
	var collected []domain.CollectedImage
	err := r.db.WithContext(ctx).
		Model(&domain.Image{}).
		Select("original_url", "file_hash", "r2_path").
		Where("source_page_url = ?", urlutil.Normalize(pageURL)).
		Scan(&collected).Error
	if err != nil {
		return nil, err
	}
	return collected, nil
}

// DeleteByHash removes every image row sharing the given content hash, and
// their tag associations, in one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - hash: content hash shared by the rows to delete.
// Returns:
//   - int64: number of image rows deleted.
//   - error: ErrNotFound when no row matches, ErrInconsistentState when
//     rows were found but the delete affected none.
func (r *ImageRepository) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	var deleted int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&domain.Image{}).Where("file_hash = ?", hash).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("%w: no image with file_hash %s", domain.ErrNotFound, hash)
		}

		if err := tx.Where("image_id IN ?", ids).Delete(&domain.ImageTag{}).Error; err != nil {
			return err
		}

		res := tx.Where("file_hash = ?", hash).Delete(&domain.Image{})
		if res.Error != nil {
			return res.Error
		}
		// Found rows but deleted none: a race or a permissions problem.
		// Surfaced, never swallowed.
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: found %d rows for file_hash %s but deleted none", domain.ErrInconsistentState, len(ids), hash)
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Query runs the paginated gallery query, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: website/tag filters and offset/limit pagination.
// Returns:
//   - []domain.Image: matching page of records, tags preloaded.
//   - int64: total matching row count.
//   - error: non-nil if any query fails.
func (r *ImageRepository) Query(ctx context.Context, filter ImageFilter) ([]domain.Image, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Image{})

	if len(filter.Websites) > 0 {
		query = query.Where("source_website IN ?", filter.Websites)
	}

	if len(filter.TagIDs) > 0 {
		ids, err := r.imageIDsWithAllTags(ctx, filter.TagIDs)
		if err != nil {
			return nil, 0, err
		}
		// Empty intersection short-circuits without touching images.
		if len(ids) == 0 {
			return []domain.Image{}, 0, nil
		}
		query = query.Where("id IN ?", ids)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var images []domain.Image
	if err := query.
		Preload("Tags").
		Order("created_at DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&images).Error; err != nil {
		return nil, 0, err
	}

	return images, total, nil
}

// imageIDsWithAllTags resolves the id set carrying each tag and intersects
// them: images must carry every listed tag, not merely any.
func (r *ImageRepository) imageIDsWithAllTags(ctx context.Context, tagIDs []string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&domain.ImageTag{}).
		Select("image_id").
		Where("tag_id IN ?", tagIDs).
		Group("image_id").
		Having("COUNT(DISTINCT tag_id) = ?", len(tagIDs)).
		Pluck("image_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateTitle changes an image's title, the only mutable scalar field.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: image ID.
//   - title: new display title.
// Returns:
//   - error: ErrNotFound when the image does not exist.
func (r *ImageRepository) UpdateTitle(ctx context.Context, id, title string) error {
	res := r.db.WithContext(ctx).Model(&domain.Image{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: image %s", domain.ErrNotFound, id)
	}
	return nil
}

// GetByID retrieves an image with its tags.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: image ID.
// Returns:
//   - *domain.Image: image record if found.
//   - error: ErrNotFound when the image does not exist.
func (r *ImageRepository) GetByID(ctx context.Context, id string) (*domain.Image, error) {
	var img domain.Image
	err := r.db.WithContext(ctx).Preload("Tags").First(&img, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: image %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// WebsiteStats materializes the per-domain aggregates for the filter UI.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.WebsiteStat: image count per source website, largest first.
//   - error: non-nil if the query fails.
func (r *ImageRepository) WebsiteStats(ctx context.Context) ([]domain.WebsiteStat, error) {
	var stats []domain.WebsiteStat
	err := r.db.WithContext(ctx).
		Model(&domain.Image{}).
		Select("source_website AS domain", "COUNT(*) AS image_count", "MAX(created_at) AS last_collected_at").
		Group("source_website").
		Order("image_count DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
