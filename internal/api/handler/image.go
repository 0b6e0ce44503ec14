package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/picvault/picvault/internal/domain"
	"github.com/picvault/picvault/internal/logger"
	"github.com/picvault/picvault/internal/repository"
)

// ImageHandler handles image metadata endpoints.
type ImageHandler struct {
	imageRepo *repository.ImageRepository
}

// NewImageHandler creates a new image handler.
// Parameters:
//   - imageRepo: image repository instance.
// Returns:
//   - *ImageHandler: initialized handler.
func NewImageHandler(imageRepo *repository.ImageRepository) *ImageHandler {
	return &ImageHandler{imageRepo: imageRepo}
}

// saveMetadataRequest mirrors the payload the capture agent sends after a
// successful relay upload.
type saveMetadataRequest struct {
	OriginalURL   string `json:"original_url"`
	R2URL         string `json:"r2_url"`
	R2Path        string `json:"r2_path"`
	SourceWebsite string `json:"source_website"`
	SourcePageURL string `json:"source_page_url"`
	Title         string `json:"title"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	FileSize      int64  `json:"file_size"`
	FileHash      string `json:"file_hash"`
	MimeType      string `json:"mime_type"`
}

// SaveMetadata handles POST /api/v1/images/metadata.
func (h *ImageHandler) SaveMetadata(c *gin.Context) {
	var req saveMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}

	img := &domain.Image{
		OriginalURL:   req.OriginalURL,
		R2URL:         req.R2URL,
		R2Path:        req.R2Path,
		SourceWebsite: req.SourceWebsite,
		SourcePageURL: req.SourcePageURL,
		Title:         req.Title,
		Width:         req.Width,
		Height:        req.Height,
		FileSize:      req.FileSize,
		FileHash:      req.FileHash,
		MimeType:      req.MimeType,
	}

	if err := h.imageRepo.Insert(c.Request.Context(), img); err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).Error("Failed to save image metadata")
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListCollected handles GET /api/v1/images/collected?pageUrl=<url>. One
// round trip warms the agent's per-page collected set.
func (h *ImageHandler) ListCollected(c *gin.Context) {
	pageURL := c.Query("pageUrl")
	if pageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing pageUrl parameter"})
		return
	}

	collected, err := h.imageRepo.ListByPageURL(c.Request.Context(), pageURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if collected == nil {
		collected = []domain.CollectedImage{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": collected})
}

// deleteByHashRequest is keyed by content hash: the delete removes every
// record sharing the hash, in one transaction.
type deleteByHashRequest struct {
	FileHash string `json:"file_hash"`
}

// DeleteByHash handles POST /api/v1/images/delete.
func (h *ImageHandler) DeleteByHash(c *gin.Context) {
	var req deleteByHashRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FileHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing file_hash parameter"})
		return
	}

	deleted, err := h.imageRepo.DeleteByHash(c.Request.Context(), req.FileHash)
	if err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).Error("Delete by hash failed")
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted_count": deleted})
}

// Query handles GET /api/v1/images. Repeated website and tag parameters
// narrow the result; tags use intersection semantics.
func (h *ImageHandler) Query(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := repository.ImageFilter{
		Websites: c.QueryArray("website"),
		TagIDs:   c.QueryArray("tag"),
		Offset:   offset,
		Limit:    limit,
	}

	items, total, err := h.imageRepo.Query(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

// updateImageRequest carries the only mutable scalar field.
type updateImageRequest struct {
	Title string `json:"title"`
}

// Update handles PATCH /api/v1/images/:id.
func (h *ImageHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req updateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.imageRepo.UpdateTitle(c.Request.Context(), id, req.Title); err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Websites handles GET /api/v1/websites, the filter UI's domain list.
func (h *ImageHandler) Websites(c *gin.Context) {
	stats, err := h.imageRepo.WebsiteStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if stats == nil {
		stats = []domain.WebsiteStat{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
