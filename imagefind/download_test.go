package imagefind

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloader_Download(t *testing.T) {
	srv := newImageServer(t, map[string]fixture{
		"/a.png":      {contentType: "image/png", body: pngBytes},
		"/b":          {contentType: "application/octet-stream", body: gifBytes},
		"/c":          {contentType: "image/jpeg; charset=binary", body: jpegBytes},
		"/untyped":    {body: jpegBytes},
		"/error.html": {contentType: "image/png", body: htmlBytes},
		"/empty":      {contentType: "image/png", body: nil},
		"/gone":       {contentType: "image/png", body: pngBytes, status: http.StatusGone},
	})

	tests := []struct {
		name     string
		path     string
		wantFile string
		wantErr  any
	}{
		{name: "declared png", path: "/a.png", wantFile: "tweet_0.png"},
		{name: "unknown type detected as gif", path: "/b", wantFile: "tweet_0.gif"},
		{name: "content type params ignored", path: "/c", wantFile: "tweet_0.jpg"},
		{name: "missing content type", path: "/untyped", wantFile: "tweet_0.jpg"},
		{name: "html payload", path: "/error.html", wantErr: &DownloadError{}},
		{name: "empty body", path: "/empty", wantErr: &VerificationError{}},
		{name: "bad status", path: "/gone", wantErr: &DownloadError{}},
		{name: "not found", path: "/missing", wantErr: &DownloadError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			d := NewDownloader(nil)

			got, err := d.Download(context.Background(), srv.URL+tt.path, dir, "tweet_0")

			if tt.wantErr != nil {
				require.Error(t, err)
				switch tt.wantErr.(type) {
				case *DownloadError:
					var de *DownloadError
					assert.ErrorAs(t, err, &de)
				case *VerificationError:
					var ve *VerificationError
					assert.ErrorAs(t, err, &ve)
				}
				assertNoTempFiles(t, dir)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.wantFile), got)
			info, err := os.Stat(got)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
			assertNoTempFiles(t, dir)
		})
	}
}

func TestDownloader_SendsBrowserHeaders(t *testing.T) {
	srv := newImageServer(t, map[string]fixture{"/a.png": {contentType: "image/png", body: pngBytes}})

	_, err := NewDownloader(nil).Download(context.Background(), srv.URL+"/a.png", t.TempDir(), "tweet_3")
	require.NoError(t, err)
	assert.Contains(t, srv.lastUser, "Mozilla/5.0")
}

func TestDownloader_ReplacesSlot(t *testing.T) {
	srv := newImageServer(t, map[string]fixture{
		"/a.png": {contentType: "image/png", body: pngBytes},
		"/b.gif": {contentType: "image/gif", body: gifBytes},
		"/bad":   {contentType: "text/html", body: htmlBytes},
	})
	dir := t.TempDir()
	d := NewDownloader(nil)
	ctx := context.Background()

	first, err := d.Download(ctx, srv.URL+"/a.png", dir, "tweet_1")
	require.NoError(t, err)

	// A failed replacement must not cost the slot its current image.
	_, err = d.Download(ctx, srv.URL+"/bad", dir, "tweet_1")
	require.Error(t, err)
	assert.FileExists(t, first)

	second, err := d.Download(ctx, srv.URL+"/b.gif", dir, "tweet_1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tweet_1.gif"), second)
	assert.NoFileExists(t, first, "only one image may exist per slot")
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.png")
	full := filepath.Join(dir, "full.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	require.NoError(t, os.WriteFile(full, pngBytes, 0o644))

	var ve *VerificationError
	require.ErrorAs(t, Verify(empty), &ve)
	assert.Equal(t, "zero bytes", ve.Reason)
	require.ErrorAs(t, Verify(filepath.Join(dir, "nope.png")), &ve)
	assert.Equal(t, "missing", ve.Reason)
	require.ErrorAs(t, Verify(dir), &ve)
	require.NoError(t, Verify(full))
}

func TestRemoveSlot(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"tweet_1.png", "tweet_1.jpg", "tweet_10.png", "tweet_2.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), pngBytes, 0o644))
	}

	require.NoError(t, RemoveSlot(dir, "tweet_1"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"tweet_10.png", "tweet_2.png"}, names)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".part"), "leftover temp file %s", e.Name())
	}
}
