// Package relay implements the stateless upload intermediary between the
// capture agent and the blob store. It accepts image bytes (or a fetchable
// URL), decides a storage path, uploads, and returns the resulting URL and
// path. It never touches the metadata store; persisting metadata is
// strictly the caller's responsibility.
package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/picvault/picvault/internal/domain"
	"github.com/picvault/picvault/internal/logger"
	"github.com/picvault/picvault/internal/storage"
	"github.com/picvault/picvault/internal/urlutil"
	_ "golang.org/x/image/webp"
)

const defaultContentType = "image/jpeg"

// UploadRequest carries one image to upload plus its client-supplied
// identifying metadata. Exactly one of ImageData (base64 bytes) or
// ImageURL (fetchable source) must be present.
type UploadRequest struct {
	ImageData string `json:"imageData,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`

	FileHash  string `json:"fileHash"`
	ImageID   string `json:"imageId,omitempty"`
	ImageName string `json:"imageName,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	OriginalURL   string `json:"originalUrl,omitempty"`
	SourceWebsite string `json:"sourceWebsite,omitempty"`
	SourcePageURL string `json:"sourcePageUrl,omitempty"`

	MimeType string `json:"mimeType,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// UploadResult is returned to the caller on success.
type UploadResult struct {
	R2URL    string `json:"r2Url"`
	R2Path   string `json:"r2Path"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Service is the stateless relay. Two concurrent uploads of identical
// content produce two blobs at two paths; deduplication happens in the
// capture agent before the relay is ever called.
type Service struct {
	storage       storage.ObjectStorage
	fetcher       *resty.Client
	maxUploadSize int64
}

// NewService creates a relay service. fetchTimeout bounds the upstream
// fetch so a dead source fails instead of hanging.
func NewService(store storage.ObjectStorage, fetchTimeout time.Duration, maxUploadSize int64) *Service {
	fetcher := resty.New().
		SetTimeout(fetchTimeout).
		SetHeader("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")

	return &Service{
		storage:       store,
		fetcher:       fetcher,
		maxUploadSize: maxUploadSize,
	}
}

// Upload runs the relay workflow: obtain bytes, derive content type, build
// the storage path, put the blob, and return its public URL.
func (s *Service) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	data, fetchedType, err := s.obtainBytes(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.maxUploadSize > 0 && int64(len(data)) > s.maxUploadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds limit %d", domain.ErrInvalidInput, len(data), s.maxUploadSize)
	}

	contentType := req.MimeType
	if contentType == "" {
		contentType = fetchedType
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	key := buildObjectKey(req, contentType)

	width, height := req.Width, req.Height
	if width == 0 || height == 0 {
		// Best effort; unsupported formats keep the caller's values.
		if cfg, _, derr := image.DecodeConfig(bytes.NewReader(data)); derr == nil {
			width, height = cfg.Width, cfg.Height
		}
	}

	meta := map[string]string{
		"file-hash":      req.FileHash,
		"image-id":       req.ImageID,
		"image-name":     req.ImageName,
		"original-url":   truncate(req.OriginalURL, 255),
		"source-website": truncate(req.SourceWebsite, 100),
	}

	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType, meta); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"key":  key,
		"size": len(data),
	}).Info("Blob stored")

	return &UploadResult{
		R2URL:    s.storage.PublicURL(key),
		R2Path:   key,
		FileSize: int64(len(data)),
		MimeType: contentType,
		Width:    width,
		Height:   height,
	}, nil
}

// DeleteBlob removes a blob by path. Deleting a path that no longer exists
// succeeds, per the retention policy.
func (s *Service) DeleteBlob(ctx context.Context, path string) error {
	return s.storage.Delete(ctx, path)
}

func validateRequest(req *UploadRequest) error {
	if req.FileHash == "" {
		return fmt.Errorf("%w: missing fileHash", domain.ErrInvalidInput)
	}
	if _, err := hex.DecodeString(req.FileHash); err != nil {
		return fmt.Errorf("%w: fileHash is not hex", domain.ErrInvalidInput)
	}
	if req.ImageData == "" && req.ImageURL == "" {
		return fmt.Errorf("%w: need imageData or imageUrl", domain.ErrInvalidInput)
	}
	return nil
}

// obtainBytes decodes the inline payload or fetches the source URL.
func (s *Service) obtainBytes(ctx context.Context, req *UploadRequest) ([]byte, string, error) {
	if req.ImageData != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageData)
		if err != nil {
			return nil, "", fmt.Errorf("%w: invalid base64 imageData", domain.ErrInvalidInput)
		}
		if len(data) == 0 {
			return nil, "", fmt.Errorf("%w: empty imageData", domain.ErrInvalidInput)
		}
		return data, "", nil
	}

	resp, err := s.fetcher.R().SetContext(ctx).Get(req.ImageURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", domain.ErrUpstreamFetch, req.ImageURL, err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("%w: %s returned %s", domain.ErrUpstreamFetch, req.ImageURL, resp.Status())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, "", fmt.Errorf("%w: %s returned an empty body", domain.ErrUpstreamFetch, req.ImageURL)
	}
	return body, resp.Header().Get("Content-Type"), nil
}

// buildObjectKey derives the storage path as {timestamp}-{id}-{name}. The
// time prefix gives the store's key ordering temporal locality; the path
// is not content-addressed, the hash lives in blob metadata and in the
// database instead.
func buildObjectKey(req *UploadRequest, contentType string) string {
	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	id := req.ImageID
	if id == "" {
		id = req.FileHash
		if len(id) > 8 {
			id = id[:8]
		}
	}

	name := req.ImageName
	if name == "" {
		ext := "jpg"
		if i := strings.Index(contentType, "/"); i != -1 && i+1 < len(contentType) {
			ext = contentType[i+1:]
		}
		name = "image." + ext
	}

	return fmt.Sprintf("%d-%s-%s", ts, id, urlutil.SanitizeName(name))
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
