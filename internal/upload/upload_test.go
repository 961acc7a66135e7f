package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vibein/vibechat/internal/backend"
	"go.uber.org/zap/zaptest"
)

// fakeRemote records uploads and fails files whose original data matches failOn.
type fakeRemote struct {
	mu       sync.Mutex
	got      []backend.Media
	failOn   string
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeRemote) UploadMedia(_ context.Context, m backend.Media) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.got = append(f.got, m)
	f.mu.Unlock()
	if f.failOn != "" && string(m.Data) == f.failOn {
		return "", errors.New("connection reset")
	}
	return "https://cdn/" + m.Filename, nil
}

func writeFiles(t *testing.T, contents ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i, c := range contents {
		p := filepath.Join(dir, fmt.Sprintf("img%d.JPG", i))
		if err := os.WriteFile(p, []byte(c), 0600); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func TestUploadAllPreservesOrder(t *testing.T) {
	remote := &fakeRemote{}
	u := New(remote, Options{MaxConcurrency: 3}, zaptest.NewLogger(t))
	paths := writeFiles(t, "one", "two", "three")

	urls, err := u.UploadAll(context.Background(), paths)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 3 {
		t.Fatalf("got %d urls, want 3", len(urls))
	}
	for _, m := range remote.got {
		if !strings.HasSuffix(m.Filename, ".jpg") {
			t.Errorf("filename %q lost its extension", m.Filename)
		}
		if strings.HasPrefix(m.Filename, "img") {
			t.Errorf("filename %q was not regenerated", m.Filename)
		}
	}
	// URLs map back to the uploaded data in input order.
	byName := map[string]string{}
	for _, m := range remote.got {
		byName["https://cdn/"+m.Filename] = string(m.Data)
	}
	for i, want := range []string{"one", "two", "three"} {
		if byName[urls[i]] != want {
			t.Errorf("urls[%d] carries %q, want %q", i, byName[urls[i]], want)
		}
	}
}

// TestUploadAllFailsWholeBatch checks that one failed upload out of three
// fails the batch and returns no URLs, after waiting for all uploads.
func TestUploadAllFailsWholeBatch(t *testing.T) {
	remote := &fakeRemote{failOn: "two"}
	u := New(remote, Options{MaxConcurrency: 3}, nil)
	paths := writeFiles(t, "one", "two", "three")

	urls, err := u.UploadAll(context.Background(), paths)
	if urls != nil {
		t.Errorf("urls = %v, want nil on failure", urls)
	}
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *BatchError", err)
	}
	if be.Failed != 1 || be.Total != 3 {
		t.Errorf("batch = %d/%d, want 1/3", be.Failed, be.Total)
	}
	if len(remote.got) != 3 {
		t.Errorf("remote saw %d uploads, want all 3 attempted", len(remote.got))
	}
}

func TestUploadAllBoundsConcurrency(t *testing.T) {
	remote := &fakeRemote{delay: 30 * time.Millisecond}
	u := New(remote, Options{MaxConcurrency: 2}, nil)
	paths := writeFiles(t, "a", "b", "c", "d", "e")

	if _, err := u.UploadAll(context.Background(), paths); err != nil {
		t.Fatal(err)
	}
	if peak := remote.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestUploadAllRejectsLargeFile(t *testing.T) {
	u := New(&fakeRemote{}, Options{MaxBytes: 4}, nil)
	paths := writeFiles(t, "tiny", "far too large")

	_, err := u.UploadAll(context.Background(), paths)
	var tl *TooLargeError
	if !errors.As(err, &tl) {
		t.Fatalf("err = %v, want *TooLargeError in the batch", err)
	}
}

func TestUploadAllMissingFile(t *testing.T) {
	u := New(&fakeRemote{}, Options{}, nil)
	_, err := u.UploadAll(context.Background(), []string{"file:///definitely/not/here.png"})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestDetectContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	if got := detectContentType(png, ".bin"); got != "image/png" {
		t.Errorf("sniffed = %q, want image/png", got)
	}
	if got := detectContentType([]byte{0, 1, 2}, ".webp"); got != "image/webp" {
		t.Errorf("by extension = %q, want image/webp", got)
	}
}
