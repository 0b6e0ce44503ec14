package relay

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/picvault/picvault/internal/domain"
	"github.com/picvault/picvault/internal/logger"
)

// Handler exposes the relay service over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a new relay handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Upload handles POST /. Responds with the wire contract the capture
// agent expects: {success:true,data:{r2Url,r2Path,fileSize,mimeType,
// width,height}} on success, {success:false,error} otherwise.
func (h *Handler) Upload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.service.Upload(c.Request.Context(), &req)
	if err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).Error("Upload failed")
		c.JSON(statusFor(err), gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// Delete handles DELETE /?r2Path=<path>. Deleting a path that no longer
// exists still reports success.
func (h *Handler) Delete(c *gin.Context) {
	path := c.Query("r2Path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "missing r2Path parameter",
		})
		return
	}

	if err := h.service.DeleteBlob(c.Request.Context(), path); err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).Error("Blob delete failed")
		c.JSON(statusFor(err), gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUpstreamFetch):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
