package source

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0, 0, 0}
)

func TestFetchArtworkFromFileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0600))

	data, mime, err := fetchArtwork("file://" + path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, "image/png", mime)
}

func TestFetchArtworkFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(jpegBytes)
	}))
	defer srv.Close()

	data, mime, err := fetchArtwork(srv.URL + "/cover")
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)
	assert.Equal(t, "image/jpeg", mime)
}

func TestFetchArtworkFailures(t *testing.T) {
	_, _, err := fetchArtwork("spotify:image:abc123")
	assert.Error(t, err, "unsupported scheme must fail")

	_, _, err = fetchArtwork("file:///does/not/exist.png")
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0600))
	_, _, err = fetchArtwork("file://" + empty)
	assert.Error(t, err, "empty artwork must fail")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	_, _, err = fetchArtwork(srv.URL + "/missing")
	assert.Error(t, err)
}
