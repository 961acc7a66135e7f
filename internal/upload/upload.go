// Package upload sends the media of an image message. A batch either
// uploads completely or fails as a whole.
package upload

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vibein/vibechat/internal/backend"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MediaUploader stores one file remotely and returns its URL.
type MediaUploader interface {
	UploadMedia(ctx context.Context, m backend.Media) (string, error)
}

// TooLargeError is returned for a file above the configured size limit.
type TooLargeError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s is %d bytes, limit is %d", e.Path, e.Size, e.Limit)
}

// BatchError reports a failed batch. Err combines every per-file error.
type BatchError struct {
	Failed int
	Total  int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("upload failed for %d of %d files: %v", e.Failed, e.Total, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Options bounds an Uploader.
type Options struct {
	MaxConcurrency int
	MaxBytes       int64
}

// Uploader uploads batches of local files.
type Uploader struct {
	remote MediaUploader
	opts   Options
	logger *zap.Logger
}

// New creates an Uploader.
func New(remote MediaUploader, opts Options, logger *zap.Logger) *Uploader {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{remote: remote, opts: opts, logger: logger}
}

// UploadAll uploads every uri concurrently and waits for all of them. The
// returned URLs are in input order. If any upload fails, no URLs are
// returned and the error is a *BatchError.
func (u *Uploader) UploadAll(ctx context.Context, uris []string) ([]string, error) {
	if len(uris) == 0 {
		return nil, fmt.Errorf("upload: no files")
	}

	urls := make([]string, len(uris))
	errs := make([]error, len(uris))
	sem := make(chan struct{}, u.opts.MaxConcurrency)

	var wg sync.WaitGroup
	for i, uri := range uris {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = fmt.Errorf("%s: %w", uri, ctx.Err())
				return
			}
			defer func() { <-sem }()
			urls[i], errs[i] = u.uploadOne(ctx, uri)
		}()
	}
	wg.Wait()

	var combined error
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			combined = multierr.Append(combined, err)
		}
	}
	if combined != nil {
		u.logger.Warn("media batch failed", zap.Int("failed", failed), zap.Int("total", len(uris)), zap.Error(combined))
		return nil, &BatchError{Failed: failed, Total: len(uris), Err: combined}
	}
	return urls, nil
}

func (u *Uploader) uploadOne(ctx context.Context, uri string) (string, error) {
	path := localPath(uri)
	media, err := u.load(path)
	if err != nil {
		return "", err
	}
	remote, err := u.remote.UploadMedia(ctx, media)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	u.logger.Debug("media uploaded", zap.String("path", path), zap.String("url", remote))
	return remote, nil
}

// load reads the whole file and tags it with a content type and a fresh name.
func (u *Uploader) load(path string) (backend.Media, error) {
	info, err := os.Stat(path)
	if err != nil {
		return backend.Media{}, err
	}
	if u.opts.MaxBytes > 0 && info.Size() > u.opts.MaxBytes {
		return backend.Media{}, &TooLargeError{Path: path, Size: info.Size(), Limit: u.opts.MaxBytes}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return backend.Media{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	return backend.Media{
		Filename:    uuid.NewString() + ext,
		ContentType: detectContentType(data, ext),
		Data:        data,
	}, nil
}

func detectContentType(data []byte, ext string) string {
	ct := http.DetectContentType(data)
	if ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return ct
}

// localPath accepts plain paths and file:// URIs.
func localPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return u.Path
}
