package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	id3v2 "github.com/bogem/id3v2/v2"

	"github.com/tunearr/tunearr/internal/observability"
	"github.com/tunearr/tunearr/pkg/httpclient"
)

// TrackMetadata is the tag set written onto an extracted audio file.
type TrackMetadata struct {
	Title        string
	Artist       string
	Album        string
	Year         int
	ThumbnailURL string
}

// Tagger writes ID3v2.4 tags and embeds cover art fetched over HTTP.
type Tagger struct {
	client *httpclient.Client
	logger *slog.Logger
}

// NewTagger creates a Tagger. client fetches cover art; pass nil to skip
// art embedding entirely.
func NewTagger(client *httpclient.Client, logger *slog.Logger) *Tagger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tagger{
		client: client,
		logger: observability.WithComponent(logger, "tagger"),
	}
}

// Tag writes meta onto the MP3 at path. A failed cover-art fetch is logged
// and skipped; the text frames are still written.
func (t *Tagger) Tag(ctx context.Context, path string, meta TrackMetadata) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("opening file for tagging: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if meta.Title != "" {
		tag.SetTitle(meta.Title)
	}
	if meta.Artist != "" {
		tag.SetArtist(meta.Artist)
	}
	if meta.Album != "" {
		tag.SetAlbum(meta.Album)
	}
	if meta.Year > 0 {
		tag.AddTextFrame(tag.CommonID("Recording time"), id3v2.EncodingUTF8,
			strconv.Itoa(meta.Year))
	}

	if art := t.fetchArt(ctx, meta.ThumbnailURL); art != nil {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    detectImageMime(art),
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     art,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("saving tags: %w", err)
	}
	return nil
}

// fetchArt downloads cover art, returning nil on any failure. Missing art
// never fails a download.
func (t *Tagger) fetchArt(ctx context.Context, url string) []byte {
	if t.client == nil || url == "" {
		return nil
	}

	data, err := t.client.GetBytes(ctx, url)
	if err != nil {
		t.logger.Warn("cover art fetch failed",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return data
}

// detectImageMime sniffs the cover art format from magic bytes.
func detectImageMime(data []byte) string {
	switch {
	case len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n":
		return "image/png"
	case len(data) >= 12 && string(data[4:12]) == "ftypavif":
		return "image/avif"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
