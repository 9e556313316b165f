package imagefind

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// DefaultTimeout bounds one image download, connect to last byte.
	DefaultTimeout = 10 * time.Second
	defaultExt     = ".jpg"
)

// extensions maps declared content types to slot file extensions. Anything
// else falls back to defaultExt unless the payload itself says otherwise.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// browserHeaders mimic a desktop browser; several image hosts refuse the Go
// default user agent. Accept-Encoding is left to the transport so gzip is
// decoded transparently.
var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":     "image/webp,image/apng,image/*,*/*;q=0.8",
	"Connection": "keep-alive",
}

// DownloadError means the image could not be fetched or was not an image.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download image %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// VerificationError means the bytes arrived but the slot file is unusable.
type VerificationError struct {
	Path   string
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify image %s: %s", e.Path, e.Reason)
}

// Downloader fetches one image into one slot file.
type Downloader struct {
	client *http.Client
}

// NewDownloader returns a Downloader. A nil client gets DefaultTimeout.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Downloader{client: client}
}

// Download fetches url into dir/<slot>.<ext>. The body is streamed to a temp
// file in dir, checked, and only then renamed over the slot, so a failed
// replacement leaves the previous image in place. Other files of the same
// slot (a different extension) are removed once the new file is verified.
func (d *Downloader) Download(ctx context.Context, url, dir, slot string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create images dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &DownloadError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	ext, known := extensionFor(resp.Header.Get("Content-Type"))

	tmp, err := os.CreateTemp(dir, slot+"-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	if n == 0 {
		return "", &VerificationError{Path: tmpPath, Reason: "empty body"}
	}

	detected, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		return "", &VerificationError{Path: tmpPath, Reason: err.Error()}
	}
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", &DownloadError{URL: url, Err: fmt.Errorf("payload is %s, not an image", detected.String())}
	}
	if !known {
		if e, ok := extensions[baseMediaType(detected.String())]; ok {
			ext = e
		}
	}

	final := filepath.Join(dir, slot+ext)
	if err := removeSlotFiles(dir, slot, final); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return "", fmt.Errorf("move image into place: %w", err)
	}
	committed = true

	if err := Verify(final); err != nil {
		return "", err
	}
	return final, nil
}

// Verify checks that path exists, is a regular file and is non-empty.
func Verify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &VerificationError{Path: path, Reason: "missing"}
		}
		return &VerificationError{Path: path, Reason: err.Error()}
	}
	if !info.Mode().IsRegular() {
		return &VerificationError{Path: path, Reason: "not a regular file"}
	}
	if info.Size() == 0 {
		return &VerificationError{Path: path, Reason: "zero bytes"}
	}
	return nil
}

// RemoveSlot deletes every file belonging to slot in dir.
func RemoveSlot(dir, slot string) error {
	return removeSlotFiles(dir, slot, "")
}

// removeSlotFiles deletes dir/<slot>.* except keep. Temp files use
// "<slot>-" and are not matched.
func removeSlotFiles(dir, slot, keep string) error {
	matches, err := filepath.Glob(filepath.Join(dir, slot+".*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if m == keep {
			continue
		}
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove previous slot image: %w", err)
		}
	}
	return nil
}

func extensionFor(contentType string) (string, bool) {
	if ext, ok := extensions[baseMediaType(contentType)]; ok {
		return ext, true
	}
	return defaultExt, false
}

func baseMediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = contentType
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
