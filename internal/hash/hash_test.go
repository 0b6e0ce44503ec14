package hash

import (
	"errors"
	"testing"

	"github.com/picvault/picvault/internal/domain"
)

// TestContentDeterministic verifies repeated hashing of the same bytes
// yields the same digest.
func TestContentDeterministic(t *testing.T) {
	payloads := [][]byte{
		[]byte("a"),
		[]byte("hello world"),
		{0x00, 0xff, 0x10, 0x80},
	}

	for _, b := range payloads {
		h1, err := Content(b)
		if err != nil {
			t.Fatalf("Content returned error: %v", err)
		}
		h2, err := Content(b)
		if err != nil {
			t.Fatalf("Content returned error on second call: %v", err)
		}
		if h1 != h2 {
			t.Errorf("digest mismatch for %q: %s != %s", b, h1, h2)
		}
		if len(h1) != 64 {
			t.Errorf("digest length: got %d, want 64", len(h1))
		}
	}
}

func TestContentKnownVector(t *testing.T) {
	h, err := Content([]byte("abc"))
	if err != nil {
		t.Fatalf("Content returned error: %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if h != want {
		t.Errorf("digest: got %s, want %s", h, want)
	}
}

func TestContentEmptyInput(t *testing.T) {
	if _, err := Content(nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Content(nil): got %v, want ErrInvalidInput", err)
	}
	if _, err := Content([]byte{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Content(empty): got %v, want ErrInvalidInput", err)
	}
}

func TestPageKey(t *testing.T) {
	k1 := PageKey("https://x.test/p?x=1#y", "https://x.test/img.png?w=200")
	k2 := PageKey("https://x.test/p", "https://x.test/img.png")
	if k1 != k2 {
		t.Errorf("normalization: keys differ: %s != %s", k1, k2)
	}

	k3 := PageKey("https://x.test/q", "https://x.test/img.png")
	if k1 == k3 {
		t.Errorf("different pages should produce different keys: %s", k1)
	}

	if k1 == "" {
		t.Error("key should not be empty")
	}
}
