// Package covers downloads book cover images and stores them as resized JPEGs.
package covers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const (
	DefaultMaxWidth = 400
	jpegQuality     = 85
)

// Doer executes HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Downloader fetches covers into a directory.
type Downloader struct {
	client   Doer
	maxWidth int
	update   bool
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c Doer) Option {
	return func(d *Downloader) {
		d.client = c
	}
}

// WithMaxWidth limits the stored image width. Narrower images are kept as-is.
func WithMaxWidth(w int) Option {
	return func(d *Downloader) {
		if w > 0 {
			d.maxWidth = w
		}
	}
}

// WithUpdate forces re-downloading covers that already exist.
func WithUpdate(update bool) Option {
	return func(d *Downloader) {
		d.update = update
	}
}

// NewDownloader creates a Downloader.
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxWidth: DefaultMaxWidth,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result describes a saved cover.
type Result struct {
	Path       string
	Downloaded bool
}

// Filename builds the cover filename for a book: "<id> - <title>.jpg".
func Filename(bookID, title string) string {
	name := sanitize(title)
	if name == "" {
		return sanitize(bookID) + ".jpg"
	}
	return sanitize(bookID) + " - " + name + ".jpg"
}

func sanitize(name string) string {
	name = strings.ReplaceAll(name, ":", " -")
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	return strings.TrimSpace(name)
}

// Download saves imageURL as dir/filename. An existing file is kept unless
// the downloader was created WithUpdate(true).
func (d *Downloader) Download(ctx context.Context, imageURL, dir, filename string) (*Result, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("no cover url")
	}

	path := filepath.Join(dir, filename)
	if !d.update {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			slog.Debug("Cover already exists, skipping download", "path", path)
			return &Result{Path: path}, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download cover: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d downloading cover from %s", resp.StatusCode, imageURL)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover: %w", err)
	}
	if img.Bounds().Dx() > d.maxWidth {
		img = imaging.Resize(img, d.maxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cover directory: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to save cover: %w", err)
	}

	slog.Info("Downloaded cover", "path", path)
	return &Result{Path: path, Downloaded: true}, nil
}
