// Package agent implements the capture-side orchestration: per-page
// session cache, dedup check, and the strictly sequential
// fetch→hash→relay→metadata workflow.
package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/picvault/picvault/internal/domain"
	"github.com/picvault/picvault/internal/hash"
	"github.com/picvault/picvault/internal/logger"
	"github.com/picvault/picvault/internal/relay"
	"github.com/picvault/picvault/internal/urlutil"
)

// CaptureStatus is the outcome of one capture workflow.
type CaptureStatus string

const (
	StatusCaptured         CaptureStatus = "captured"
	StatusAlreadyCollected CaptureStatus = "already_collected"
	StatusFailed           CaptureStatus = "failed"
)

// CaptureResult reports one workflow's outcome to the caller.
type CaptureResult struct {
	Status   CaptureStatus
	FileHash string
	R2Path   string
	R2URL    string
}

// Config holds the agent's tunables.
type Config struct {
	FetchTimeout time.Duration
}

// Agent orchestrates capture and delete workflows. Many workflows may be
// in flight concurrently; the session map is the only shared state and
// guards itself.
type Agent struct {
	relay   RelayClient
	meta    MetadataClient
	fetcher *resty.Client
}

// New creates an agent over the given clients.
func New(relayClient RelayClient, metaClient MetadataClient, cfg *Config) *Agent {
	timeout := 30 * time.Second
	if cfg != nil && cfg.FetchTimeout > 0 {
		timeout = cfg.FetchTimeout
	}

	// Browser-like headers keep hotlink-protected sources serving us.
	fetcher := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8").
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	return &Agent{relay: relayClient, meta: metaClient, fetcher: fetcher}
}

// OpenSession creates a session for a page and warms its collected set
// from the metadata store in one round trip.
func (a *Agent) OpenSession(ctx context.Context, pageURL string) (*Session, error) {
	sess := NewSession(pageURL)

	collected, err := a.meta.ListByPage(ctx, sess.PageURL())
	if err != nil {
		return nil, fmt.Errorf("failed to warm session for %s: %w", sess.PageURL(), err)
	}
	sess.replace(collected)

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldPageURL: sess.PageURL(),
		logger.FieldCount:   len(collected),
	}).Info("Session warmed")

	return sess, nil
}

// Capture runs the per-image workflow: local dedup check, fetch, hash,
// relay upload, metadata insert, session update. Steps are strictly
// sequential; any failure surfaces immediately and no later step runs.
func (a *Agent) Capture(ctx context.Context, sess *Session, imageURL string) (*CaptureResult, error) {
	cleanURL := urlutil.Normalize(imageURL)
	ctx = logger.WithField(ctx, logger.FieldCaptureID, hash.PageKey(sess.PageURL(), imageURL))

	if ci, ok := sess.Lookup(cleanURL); ok {
		logger.CtxDebug(ctx, "Image already collected: %s", cleanURL)
		return &CaptureResult{
			Status:   StatusAlreadyCollected,
			FileHash: ci.FileHash,
			R2Path:   ci.R2Path,
		}, nil
	}

	data, contentType, err := a.fetchImage(ctx, imageURL, sess.PageURL())
	if err != nil {
		return &CaptureResult{Status: StatusFailed}, err
	}

	fileHash, err := hash.Content(data)
	if err != nil {
		return &CaptureResult{Status: StatusFailed}, err
	}

	upload, err := a.relay.Upload(ctx, &relay.UploadRequest{
		ImageData:     base64.StdEncoding.EncodeToString(data),
		FileHash:      fileHash,
		ImageID:       hash.PageKey(sess.PageURL(), imageURL),
		ImageName:     urlutil.SanitizeName(urlutil.FileName(imageURL)),
		Timestamp:     time.Now().UnixMilli(),
		OriginalURL:   cleanURL,
		SourceWebsite: urlutil.Hostname(sess.PageURL()),
		SourcePageURL: sess.PageURL(),
		MimeType:      contentType,
	})
	if err != nil {
		return &CaptureResult{Status: StatusFailed}, fmt.Errorf("relay upload: %w", err)
	}

	if err := a.meta.SaveImage(ctx, &ImageMetadata{
		OriginalURL:   cleanURL,
		R2URL:         upload.R2URL,
		R2Path:        upload.R2Path,
		SourceWebsite: urlutil.Hostname(sess.PageURL()),
		SourcePageURL: sess.PageURL(),
		Title:         urlutil.FileName(imageURL),
		Width:         upload.Width,
		Height:        upload.Height,
		FileSize:      upload.FileSize,
		FileHash:      fileHash,
		MimeType:      upload.MimeType,
	}); err != nil {
		// The blob exists but its record does not: a documented orphan,
		// surfaced rather than retried.
		return &CaptureResult{Status: StatusFailed},
			fmt.Errorf("metadata write failed after upload, blob %s retained: %w", upload.R2Path, err)
	}

	sess.Remember(cleanURL, domain.CollectedImage{
		OriginalURL: cleanURL,
		FileHash:    fileHash,
		R2Path:      upload.R2Path,
	})

	logger.FromContext(ctx).WithFields(logger.Fields{
		"file_hash": fileHash,
		"r2_path":   upload.R2Path,
	}).Info("Image captured")

	return &CaptureResult{
		Status:   StatusCaptured,
		FileHash: fileHash,
		R2Path:   upload.R2Path,
		R2URL:    upload.R2URL,
	}, nil
}

// Delete removes every metadata record sharing the clicked image's hash.
// The hash comes from the session map only; the agent never re-fetches
// bytes to guess one. The blob itself is retained.
func (a *Agent) Delete(ctx context.Context, sess *Session, imageURL string) (int64, error) {
	cleanURL := urlutil.Normalize(imageURL)

	ci, ok := sess.Lookup(cleanURL)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not in the collected set", domain.ErrNotFound, cleanURL)
	}

	deleted, err := a.meta.DeleteByHash(ctx, ci.FileHash)
	if err != nil {
		return 0, err
	}

	sess.Forget(cleanURL)

	logger.FromContext(ctx).WithFields(logger.Fields{
		"file_hash":       ci.FileHash,
		logger.FieldCount: deleted,
	}).Info("Image deleted")

	return deleted, nil
}

// fetchImage downloads the source bytes, failing rather than hanging.
func (a *Agent) fetchImage(ctx context.Context, imageURL, referer string) ([]byte, string, error) {
	resp, err := a.fetcher.R().
		SetContext(ctx).
		SetHeader("Referer", referer).
		Get(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", domain.ErrUpstreamFetch, imageURL, err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("%w: %s returned %s", domain.ErrUpstreamFetch, imageURL, resp.Status())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, "", fmt.Errorf("%w: %s returned an empty body", domain.ErrUpstreamFetch, imageURL)
	}
	return body, resp.Header().Get("Content-Type"), nil
}
