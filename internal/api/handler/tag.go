package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/picvault/picvault/internal/repository"
	"github.com/picvault/picvault/internal/service"
)

// TagHandler handles tag and image-tag association endpoints.
type TagHandler struct {
	tagRepo    *repository.TagRepository
	tagService *service.TagService
}

// NewTagHandler creates a new tag handler.
// Parameters:
//   - tagRepo: tag repository instance.
//   - tagService: tag reconciliation service.
// Returns:
//   - *TagHandler: initialized handler.
func NewTagHandler(tagRepo *repository.TagRepository, tagService *service.TagService) *TagHandler {
	return &TagHandler{tagRepo: tagRepo, tagService: tagService}
}

// List handles GET /api/v1/tags.
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.tagRepo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": tags})
}

type createTagRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/tags. Creation is idempotent: posting an
// existing name returns the existing tag.
func (h *TagHandler) Create(c *gin.Context) {
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing tag name"})
		return
	}

	tag, err := h.tagRepo.Upsert(c.Request.Context(), req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": tag})
}

type setImageTagsRequest struct {
	TagIDs []string `json:"tag_ids"`
}

// SetImageTags handles PUT /api/v1/images/:id/tags, reconciling the
// image's associations with the desired tag id set.
func (h *TagHandler) SetImageTags(c *gin.Context) {
	id := c.Param("id")

	var req setImageTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.tagService.SetImageTags(c.Request.Context(), id, req.TagIDs); err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
