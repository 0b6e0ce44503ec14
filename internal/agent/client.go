package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/picvault/picvault/internal/domain"
	"github.com/picvault/picvault/internal/relay"
)

// RelayClient uploads images through the relay service.
type RelayClient interface {
	Upload(ctx context.Context, req *relay.UploadRequest) (*relay.UploadResult, error)
}

// MetadataClient talks to the metadata API on behalf of the agent.
type MetadataClient interface {
	SaveImage(ctx context.Context, img *ImageMetadata) error
	ListByPage(ctx context.Context, pageURL string) ([]domain.CollectedImage, error)
	DeleteByHash(ctx context.Context, hash string) (int64, error)
}

// ImageMetadata is the record written after a successful relay upload.
type ImageMetadata struct {
	OriginalURL   string `json:"original_url"`
	R2URL         string `json:"r2_url"`
	R2Path        string `json:"r2_path"`
	SourceWebsite string `json:"source_website"`
	SourcePageURL string `json:"source_page_url"`
	Title         string `json:"title,omitempty"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	FileSize      int64  `json:"file_size"`
	FileHash      string `json:"file_hash"`
	MimeType      string `json:"mime_type,omitempty"`
}

// ClientConfig configures the agent's HTTP clients.
type ClientConfig struct {
	RelayURL   string
	APIBaseURL string
	APIKey     string
	Timeout    time.Duration
}

// HTTPRelayClient implements RelayClient over the relay's wire contract.
type HTTPRelayClient struct {
	client *resty.Client
	url    string
}

// NewHTTPRelayClient creates a relay client.
func NewHTTPRelayClient(cfg *ClientConfig) *HTTPRelayClient {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &HTTPRelayClient{client: client, url: cfg.RelayURL}
}

type relayResponse struct {
	Success bool                `json:"success"`
	Data    *relay.UploadResult `json:"data"`
	Error   string              `json:"error"`
}

// Upload sends the image to the relay and returns the stored blob's URL
// and path.
func (c *HTTPRelayClient) Upload(ctx context.Context, req *relay.UploadRequest) (*relay.UploadResult, error) {
	var out relayResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: relay: %v", domain.ErrStoreUnavailable, err)
	}
	if resp.IsError() || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("relay upload failed: %s", msg)
	}
	if out.Data == nil {
		return nil, fmt.Errorf("relay upload failed: empty response data")
	}
	return out.Data, nil
}

// HTTPMetadataClient implements MetadataClient against the metadata API.
type HTTPMetadataClient struct {
	client  *resty.Client
	baseURL string
}

// NewHTTPMetadataClient creates a metadata client.
func NewHTTPMetadataClient(cfg *ClientConfig) *HTTPMetadataClient {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPMetadataClient{client: client, baseURL: cfg.APIBaseURL}
}

type metadataResponse struct {
	Success      bool                    `json:"success"`
	Data         []domain.CollectedImage `json:"data"`
	DeletedCount int64                   `json:"deleted_count"`
	Error        string                  `json:"error"`
}

// SaveImage persists one captured image's metadata.
func (c *HTTPMetadataClient) SaveImage(ctx context.Context, img *ImageMetadata) error {
	var out metadataResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(img).
		SetResult(&out).
		SetError(&out).
		Post(c.baseURL + "/api/v1/images/metadata")
	if err != nil {
		return fmt.Errorf("metadata api: %w", err)
	}
	if resp.IsError() || !out.Success {
		return apiError("save metadata", resp.StatusCode(), out.Error)
	}
	return nil
}

// ListByPage fetches the collected-image set for one page.
func (c *HTTPMetadataClient) ListByPage(ctx context.Context, pageURL string) ([]domain.CollectedImage, error) {
	var out metadataResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("pageUrl", pageURL).
		SetResult(&out).
		SetError(&out).
		Get(c.baseURL + "/api/v1/images/collected")
	if err != nil {
		return nil, fmt.Errorf("metadata api: %w", err)
	}
	if resp.IsError() || !out.Success {
		return nil, apiError("list collected", resp.StatusCode(), out.Error)
	}
	return out.Data, nil
}

// DeleteByHash removes every image record sharing the hash.
func (c *HTTPMetadataClient) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	var out metadataResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"file_hash": hash}).
		SetResult(&out).
		SetError(&out).
		Post(c.baseURL + "/api/v1/images/delete")
	if err != nil {
		return 0, fmt.Errorf("metadata api: %w", err)
	}
	if resp.IsError() || !out.Success {
		return 0, apiError("delete by hash", resp.StatusCode(), out.Error)
	}
	return out.DeletedCount, nil
}

// apiError folds an HTTP-level failure back into the domain taxonomy so
// workflow callers can match with errors.Is.
func apiError(op string, status int, msg string) error {
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	switch status {
	case 404:
		return fmt.Errorf("%w: %s: %s", domain.ErrNotFound, op, msg)
	case 400:
		return fmt.Errorf("%w: %s: %s", domain.ErrValidation, op, msg)
	case 401:
		return fmt.Errorf("%w: %s: %s", domain.ErrUnauthorized, op, msg)
	default:
		return fmt.Errorf("%s failed: %s", op, msg)
	}
}
