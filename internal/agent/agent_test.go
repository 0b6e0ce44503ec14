package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/picvault/picvault/internal/domain"
	"github.com/picvault/picvault/internal/relay"
)

// fakeRelay counts uploads and can be made to fail.
type fakeRelay struct {
	mu      sync.Mutex
	uploads []*relay.UploadRequest
	err     error
}

func (f *fakeRelay) Upload(ctx context.Context, req *relay.UploadRequest) (*relay.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, req)
	path := fmt.Sprintf("%d-%s-%s", req.Timestamp, req.ImageID, req.ImageName)
	return &relay.UploadResult{
		R2URL:    "https://cdn.test/" + path,
		R2Path:   path,
		FileSize: 3,
		MimeType: "image/png",
	}, nil
}

func (f *fakeRelay) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// fakeMetadata keeps saved records in memory, keyed like the real store.
type fakeMetadata struct {
	mu        sync.Mutex
	saved     []*ImageMetadata
	collected []domain.CollectedImage
	saveErr   error
}

func (f *fakeMetadata) SaveImage(ctx context.Context, img *ImageMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, img)
	return nil
}

func (f *fakeMetadata) ListByPage(ctx context.Context, pageURL string) ([]domain.CollectedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collected, nil
}

func (f *fakeMetadata) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*ImageMetadata
	var deleted int64
	for _, img := range f.saved {
		if img.FileHash == hash {
			deleted++
			continue
		}
		kept = append(kept, img)
	}
	f.saved = kept
	if deleted == 0 {
		return 0, fmt.Errorf("%w: no image with file_hash %s", domain.ErrNotFound, hash)
	}
	return deleted, nil
}

func newTestAgent(relayClient RelayClient, metaClient MetadataClient) *Agent {
	return New(relayClient, metaClient, &Config{FetchTimeout: 5 * time.Second})
}

// imageServer serves fixed bytes at any path.
func imageServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
}

func TestCaptureAndSessionUpdate(t *testing.T) {
	srv := imageServer(t, []byte("png"))
	defer srv.Close()

	fr := &fakeRelay{}
	fm := &fakeMetadata{}
	a := newTestAgent(fr, fm)

	sess, err := a.OpenSession(context.Background(), "https://x.test/p?x=1#y")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if sess.PageURL() != "https://x.test/p" {
		t.Errorf("page URL not normalized: %q", sess.PageURL())
	}

	result, err := a.Capture(context.Background(), sess, srv.URL+"/img.png?w=200")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if result.Status != StatusCaptured {
		t.Fatalf("status = %q", result.Status)
	}
	if len(fm.saved) != 1 {
		t.Fatalf("saved records = %d, want 1", len(fm.saved))
	}

	rec := fm.saved[0]
	if rec.SourcePageURL != "https://x.test/p" {
		t.Errorf("source_page_url = %q, want normalized", rec.SourcePageURL)
	}
	if rec.OriginalURL != srv.URL+"/img.png" {
		t.Errorf("original_url = %q, want normalized", rec.OriginalURL)
	}
	if rec.FileHash != result.FileHash {
		t.Errorf("hash mismatch between record and result")
	}

	// Second capture of the same normalized URL: served locally, no
	// relay call.
	before := fr.uploadCount()
	result2, err := a.Capture(context.Background(), sess, srv.URL+"/img.png#frag")
	if err != nil {
		t.Fatalf("second Capture: %v", err)
	}
	if result2.Status != StatusAlreadyCollected {
		t.Errorf("second status = %q, want already_collected", result2.Status)
	}
	if fr.uploadCount() != before {
		t.Error("already-collected capture still called the relay")
	}
}

func TestCaptureIdenticalBytesDifferentURLs(t *testing.T) {
	srv := imageServer(t, []byte("same bytes"))
	defer srv.Close()

	fr := &fakeRelay{}
	fm := &fakeMetadata{}
	a := newTestAgent(fr, fm)

	sess, _ := a.OpenSession(context.Background(), "https://x.test/p")

	r1, err := a.Capture(context.Background(), sess, srv.URL+"/a.png")
	if err != nil {
		t.Fatalf("capture a: %v", err)
	}
	r2, err := a.Capture(context.Background(), sess, srv.URL+"/b.png")
	if err != nil {
		t.Fatalf("capture b: %v", err)
	}

	if r1.FileHash != r2.FileHash {
		t.Fatal("identical bytes should share one content hash")
	}
	if len(fm.saved) != 2 {
		t.Fatalf("saved records = %d, want 2", len(fm.saved))
	}

	// Delete by hash removes both rows in one call.
	deleted, err := a.Delete(context.Background(), sess, srv.URL+"/a.png")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted_count = %d, want 2", deleted)
	}
}

func TestCaptureRelayFailureWritesNoMetadata(t *testing.T) {
	srv := imageServer(t, []byte("png"))
	defer srv.Close()

	fr := &fakeRelay{err: errors.New("store down")}
	fm := &fakeMetadata{}
	a := newTestAgent(fr, fm)

	sess, _ := a.OpenSession(context.Background(), "https://x.test/p")

	result, err := a.Capture(context.Background(), sess, srv.URL+"/img.png")
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Status != StatusFailed {
		t.Errorf("status = %q, want failed", result.Status)
	}
	if len(fm.saved) != 0 {
		t.Error("metadata written after relay failure")
	}
	if sess.Len() != 0 {
		t.Error("session updated after failed workflow")
	}
}

func TestCaptureMetadataFailureSurfacesOrphan(t *testing.T) {
	srv := imageServer(t, []byte("png"))
	defer srv.Close()

	fr := &fakeRelay{}
	fm := &fakeMetadata{saveErr: errors.New("db down")}
	a := newTestAgent(fr, fm)

	sess, _ := a.OpenSession(context.Background(), "https://x.test/p")

	_, err := a.Capture(context.Background(), sess, srv.URL+"/img.png")
	if err == nil {
		t.Fatal("expected error")
	}
	// The blob was stored; the failure must not be downgraded.
	if fr.uploadCount() != 1 {
		t.Errorf("uploads = %d, want 1", fr.uploadCount())
	}
	if sess.Len() != 0 {
		t.Error("session updated despite metadata failure")
	}
}

func TestCaptureUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fr := &fakeRelay{}
	fm := &fakeMetadata{}
	a := newTestAgent(fr, fm)

	sess, _ := a.OpenSession(context.Background(), "https://x.test/p")

	_, err := a.Capture(context.Background(), sess, srv.URL+"/gone.png")
	if !errors.Is(err, domain.ErrUpstreamFetch) {
		t.Fatalf("got %v, want ErrUpstreamFetch", err)
	}
	if fr.uploadCount() != 0 {
		t.Error("relay called after failed fetch")
	}
}

func TestDeleteUnknownImage(t *testing.T) {
	fr := &fakeRelay{}
	fm := &fakeMetadata{}
	a := newTestAgent(fr, fm)

	sess, _ := a.OpenSession(context.Background(), "https://x.test/p")

	// The agent never guesses a hash by re-fetching.
	_, err := a.Delete(context.Background(), sess, "https://x.test/unknown.png")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSessionWarmedFromStore(t *testing.T) {
	fm := &fakeMetadata{collected: []domain.CollectedImage{
		{OriginalURL: "https://x.test/a.png?v=2", FileHash: "h1", R2Path: "p1"},
	}}
	a := newTestAgent(&fakeRelay{}, fm)

	sess, err := a.OpenSession(context.Background(), "https://x.test/p")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if sess.Len() != 1 {
		t.Fatalf("session size = %d, want 1", sess.Len())
	}
	if _, ok := sess.Lookup("https://x.test/a.png"); !ok {
		t.Error("warmed entry not found under normalized URL")
	}
}
