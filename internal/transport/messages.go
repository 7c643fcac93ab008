package transport

// Wire shapes for the outbound telemetry stream. Every message is a JSON
// text frame with a "type" discriminator; artwork uploads follow their meta
// message as a raw binary frame.

type windowMessage struct {
	Type      string     `json:"type"`
	Timestamp int64      `json:"ts"`
	Data      windowData `json:"data"`
}

type windowData struct {
	Title       string `json:"title"`
	ProcessName string `json:"process_name"`
	IconURL     string `json:"icon_url,omitempty"`
	AppID       string `json:"app_id,omitempty"`
	PID         uint32 `json:"pid"`
}

type mediaMessage struct {
	Type          string        `json:"type"`
	Timestamp     int64         `json:"ts"`
	Metadata      mediaMetadata `json:"metadata"`
	PlaybackState playbackState `json:"playback_state"`
}

type mediaMetadata struct {
	BundleIdentifier      string  `json:"bundle_identifier,omitempty"`
	Title                 string  `json:"title,omitempty"`
	Artist                string  `json:"artist,omitempty"`
	Album                 string  `json:"album,omitempty"`
	Duration              float64 `json:"duration"`
	ArtworkURL            string  `json:"artwork_url,omitempty"`
	ContentItemIdentifier string  `json:"content_item_identifier,omitempty"`
}

type playbackState struct {
	Playing      bool    `json:"playing"`
	PlaybackRate float64 `json:"playback_rate"`
	ElapsedTime  float64 `json:"elapsed_time"`
}

type artworkMetaMessage struct {
	Type                  string `json:"type"`
	Timestamp             int64  `json:"ts"`
	ContentItemIdentifier string `json:"content_item_identifier"`
	MimeType              string `json:"mime_type"`
}

// serverMessage is what the endpoint sends back. Only artwork upload acks
// are acted on today.
type serverMessage struct {
	Type                  string `json:"type"`
	ContentItemIdentifier string `json:"content_item_identifier,omitempty"`
	ArtworkURL            string `json:"artwork_url,omitempty"`
}

const (
	msgTypeWindowInfo      = "window_info"
	msgTypeMediaPlayback   = "media_playback"
	msgTypeUploadArtwork   = "upload_artwork_meta"
	msgTypeArtworkUploaded = "artwork_uploaded"
)
