package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tunearr/tunearr/internal/config"
	"github.com/tunearr/tunearr/internal/observability"
)

// playlistIDPattern extracts the list marker from a playlist URL.
var playlistIDPattern = regexp.MustCompile(`[?&]list=([A-Za-z0-9_-]+)`)

// restrictedAvailabilities are the yt-dlp availability values that require
// authentication.
var restrictedAvailabilities = map[string]bool{
	"private":         true,
	"subscriber_only": true,
	"premium_only":    true,
	"needs_auth":      true,
}

// YtDlp shells out to the yt-dlp binary for playlist listing and audio
// extraction. It implements PlaylistLister and AudioExtractor.
type YtDlp struct {
	cfg    config.ExtractorConfig
	logger *slog.Logger
}

// NewYtDlp creates a yt-dlp backed extractor.
func NewYtDlp(cfg config.ExtractorConfig, logger *slog.Logger) *YtDlp {
	if logger == nil {
		logger = slog.Default()
	}
	return &YtDlp{
		cfg:    cfg,
		logger: observability.WithComponent(logger, "extractor"),
	}
}

// ytdlpPlaylist mirrors the JSON emitted by --dump-single-json --flat-playlist.
type ytdlpPlaylist struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Entries []ytdlpEntry `json:"entries"`
}

type ytdlpEntry struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Uploader     string          `json:"uploader"`
	Channel      string          `json:"channel"`
	Duration     float64         `json:"duration"`
	Availability string          `json:"availability"`
	Album        string          `json:"album"`
	Artists      []string        `json:"artists"`
	ReleaseYear  int             `json:"release_year"`
	Thumbnails   []ytdlpThumb    `json:"thumbnails"`
	Thumbnail    string          `json:"thumbnail"`
	UploadDate   json.RawMessage `json:"upload_date"`
}

type ytdlpThumb struct {
	URL string `json:"url"`
}

// ytdlpVideo mirrors the JSON emitted by --dump-single-json for one video.
type ytdlpVideo struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Uploader     string  `json:"uploader"`
	Duration     float64 `json:"duration"`
	Availability string  `json:"availability"`
}

// ExtractPlaylistID returns the list marker from a playlist URL, or an
// error when the URL carries none.
func ExtractPlaylistID(url string) (string, error) {
	m := playlistIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("no playlist marker in URL: %s", url)
	}
	return m[1], nil
}

// ListPlaylist lists the playlist via a flat extraction and validates each
// entry. Entries without an ID are dropped.
func (y *YtDlp) ListPlaylist(ctx context.Context, url string) (*PlaylistInfo, error) {
	playlistID, err := ExtractPlaylistID(url)
	if err != nil {
		return nil, newPermanentError("listing playlist", err)
	}

	if y.cfg.ListTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.cfg.ListTimeout)
		defer cancel()
	}

	args := []string{
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
		url,
	}

	out, err := y.run(ctx, args)
	if err != nil {
		return nil, newTransientError("listing playlist", err)
	}

	info, err := ParsePlaylistJSON(out)
	if err != nil {
		return nil, newPermanentError("listing playlist", err)
	}
	if info.ID == "" {
		info.ID = playlistID
	}

	y.logger.Info("playlist listed",
		slog.String("playlist_id", info.ID),
		slog.String("title", info.Title),
		slog.Int("entries", len(info.Entries)),
	)
	return info, nil
}

// ParsePlaylistJSON validates raw flat-playlist output into a PlaylistInfo.
func ParsePlaylistJSON(data []byte) (*PlaylistInfo, error) {
	var raw ytdlpPlaylist
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing playlist JSON: %w", err)
	}

	info := &PlaylistInfo{
		ID:      raw.ID,
		Title:   raw.Title,
		Entries: make([]VideoEntry, 0, len(raw.Entries)),
	}
	if info.Title == "" {
		info.Title = "Unknown Playlist"
	}

	for _, e := range raw.Entries {
		if e.ID == "" {
			continue
		}

		entry := VideoEntry{
			ID:         e.ID,
			Title:      e.Title,
			Uploader:   e.Uploader,
			Duration:   int(e.Duration),
			Album:      e.Album,
			Year:       e.ReleaseYear,
			Restricted: restrictedAvailabilities[e.Availability],
		}
		if entry.Title == "" {
			entry.Title = "Unknown Title"
		}
		if entry.Uploader == "" {
			entry.Uploader = e.Channel
		}
		if len(e.Artists) > 0 {
			entry.Artist = strings.Join(e.Artists, ", ")
		} else {
			entry.Artist = entry.Uploader
		}
		if len(e.Thumbnails) > 0 {
			// Thumbnails are ordered smallest first.
			entry.ThumbnailURL = e.Thumbnails[len(e.Thumbnails)-1].URL
		} else {
			entry.ThumbnailURL = e.Thumbnail
		}

		info.Entries = append(info.Entries, entry)
	}

	return info, nil
}

// Extract probes the video, then downloads and converts its audio track to
// MP3 inside destDir. Videos gated behind authentication return a
// *RestrictedError.
func (y *YtDlp) Extract(ctx context.Context, videoURL, destDir string) (*ExtractResult, error) {
	if y.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.cfg.ExtractTimeout)
		defer cancel()
	}

	// music.youtube.com URLs extract identically but slower through the
	// music frontend.
	cleanURL := strings.Replace(videoURL, "music.youtube.com", "www.youtube.com", 1)

	probe, err := y.probe(ctx, cleanURL)
	if err != nil {
		return nil, err
	}
	if restrictedAvailabilities[probe.Availability] {
		return nil, &RestrictedError{VideoURL: videoURL, Availability: probe.Availability}
	}

	args := []string{
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", y.cfg.AudioQuality,
		"--no-playlist",
		"--no-warnings",
		"-o", filepath.Join(destDir, "%(title)s [%(id)s].%(ext)s"),
		"--print", "after_move:filepath",
		cleanURL,
	}

	out, err := y.run(ctx, args)
	if err != nil {
		return nil, newTransientError("extracting audio", err)
	}

	path := lastNonEmptyLine(out)
	if path == "" {
		return nil, newPermanentError("extracting audio",
			errors.New("yt-dlp did not report an output file"))
	}

	y.logger.Info("audio extracted",
		slog.String("video_id", probe.ID),
		slog.String("file", path),
	)

	return &ExtractResult{
		FilePath: path,
		Title:    probe.Title,
		Uploader: probe.Uploader,
		Duration: int(probe.Duration),
	}, nil
}

// probe fetches single-video metadata without downloading.
func (y *YtDlp) probe(ctx context.Context, url string) (*ytdlpVideo, error) {
	args := []string{
		"--dump-single-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		url,
	}

	out, err := y.run(ctx, args)
	if err != nil {
		return nil, newTransientError("probing video", err)
	}

	var video ytdlpVideo
	if err := json.Unmarshal(out, &video); err != nil {
		return nil, newPermanentError("probing video", fmt.Errorf("parsing video JSON: %w", err))
	}
	return &video, nil
}

// run executes the yt-dlp binary and returns its stdout.
func (y *YtDlp) run(ctx context.Context, args []string) ([]byte, error) {
	binary := y.cfg.BinaryPath
	if binary == "" {
		binary = "yt-dlp"
	}

	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	y.logger.Debug("running yt-dlp", slog.String("args", strings.Join(args, " ")))

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("yt-dlp: %w", err)
		}
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, firstLine(msg))
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func lastNonEmptyLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

var (
	_ PlaylistLister = (*YtDlp)(nil)
	_ AudioExtractor = (*YtDlp)(nil)
)
