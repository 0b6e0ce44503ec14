package service

import (
	"context"
	"fmt"

	"github.com/picvault/picvault/internal/repository"
)

// DiffTagSets computes which tag ids must be added to and removed from an
// image to move it from the current tag set to the desired one. Pure set
// difference; order of the returned slices follows input order.
func DiffTagSets(current, desired []string) (toAdd, toRemove []string) {
	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	desiredSet := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}

	for _, id := range desired {
		if _, ok := currentSet[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range current {
		if _, ok := desiredSet[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove
}

// TagService applies tag-set mutations on top of the tag repository.
type TagService struct {
	tagRepo *repository.TagRepository
}

// NewTagService creates a new tag service.
func NewTagService(tagRepo *repository.TagRepository) *TagService {
	return &TagService{tagRepo: tagRepo}
}

// SetImageTags reconciles an image's associations with the desired tag id
// set. Adds and removes are individually idempotent, so a concurrent
// reconciliation of the same image converges rather than erroring.
func (s *TagService) SetImageTags(ctx context.Context, imageID string, desired []string) error {
	current, err := s.tagRepo.TagIDsForImage(ctx, imageID)
	if err != nil {
		return fmt.Errorf("failed to load current tags: %w", err)
	}

	toAdd, toRemove := DiffTagSets(current, desired)

	for _, tagID := range toAdd {
		if err := s.tagRepo.AddTagToImage(ctx, imageID, tagID); err != nil {
			return fmt.Errorf("failed to add tag %s: %w", tagID, err)
		}
	}
	for _, tagID := range toRemove {
		if err := s.tagRepo.RemoveTagFromImage(ctx, imageID, tagID); err != nil {
			return fmt.Errorf("failed to remove tag %s: %w", tagID, err)
		}
	}
	return nil
}
