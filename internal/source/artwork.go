package source

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	// maxArtworkBytes bounds what a single artwork can occupy in the event
	// stream and the send queue.
	maxArtworkBytes     = 2 << 20
	artworkFetchTimeout = 5 * time.Second
)

var artworkClient = &http.Client{Timeout: artworkFetchTimeout}

// fetchArtwork loads the artwork bytes behind an art URL as players report
// it (a file:// path for local caches, http(s) for streaming services) and
// sniffs the MIME type from the content.
func fetchArtwork(rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid artwork url %q: %w", rawURL, err)
	}

	var data []byte
	switch u.Scheme {
	case "file", "":
		data, err = os.ReadFile(u.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read artwork file: %w", err)
		}
	case "http", "https":
		resp, err := artworkClient.Get(rawURL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch artwork: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes+1))
		if err != nil {
			return nil, "", fmt.Errorf("failed to read artwork body: %w", err)
		}
	default:
		return nil, "", fmt.Errorf("unsupported artwork scheme %q", u.Scheme)
	}

	if len(data) == 0 {
		return nil, "", fmt.Errorf("artwork at %q is empty", rawURL)
	}
	if len(data) > maxArtworkBytes {
		return nil, "", fmt.Errorf("artwork at %q exceeds %d bytes", rawURL, maxArtworkBytes)
	}
	return data, http.DetectContentType(data), nil
}
