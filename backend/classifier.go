package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// URL classification for the supported platforms. Classification is
// pure string inspection; only playlist expansion touches the network.

// Platform identifies the streaming platform an input URL points at.
type Platform string

const (
	PlatformYouTube    Platform = "youtube"
	PlatformSoundCloud Platform = "soundcloud"
	PlatformUnknown    Platform = "unknown"
)

// SourceKind distinguishes single tracks from playlists.
type SourceKind string

const (
	KindSingleTrack SourceKind = "track"
	KindPlaylist    SourceKind = "playlist"
	KindInvalid     SourceKind = "invalid"
)

// ClassificationError reports an input URL that cannot be processed,
// either because it matches no supported platform or because playlist
// expansion against the service failed.
type ClassificationError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %q: %v", e.Reason, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.URL)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Classification is the result of inspecting an input URL.
type Classification struct {
	Platform Platform
	Kind     SourceKind
}

// ClassifyURL classifies an input URL as a single track or a playlist on
// one of the supported platforms. No network access.
func ClassifyURL(rawURL string) Classification {
	u := strings.TrimSpace(rawURL)

	switch {
	case isYouTubePlaylist(u):
		return Classification{PlatformYouTube, KindPlaylist}
	case isYouTubeTrack(u):
		return Classification{PlatformYouTube, KindSingleTrack}
	case isSoundCloudPlaylist(u):
		return Classification{PlatformSoundCloud, KindPlaylist}
	case isSoundCloudTrack(u):
		return Classification{PlatformSoundCloud, KindSingleTrack}
	default:
		return Classification{PlatformUnknown, KindInvalid}
	}
}

func isYouTubePlaylist(u string) bool {
	return strings.Contains(u, "youtube.com/playlist") ||
		strings.Contains(u, "youtu.be/playlist") ||
		(strings.Contains(u, "youtube.com") && strings.Contains(u, "list="))
}

func isYouTubeTrack(u string) bool {
	return (strings.Contains(u, "youtu.be/") || strings.Contains(u, "youtube.com/watch")) &&
		!isYouTubePlaylist(u)
}

func isSoundCloudPlaylist(u string) bool {
	return strings.Contains(u, "soundcloud.com") && strings.Contains(u, "sets")
}

func isSoundCloudTrack(u string) bool {
	return strings.Contains(u, "soundcloud.com") && !isSoundCloudPlaylist(u)
}

// IsSoundCloudURL reports whether the URL belongs to SoundCloud, the
// platform that serves region-locked preview tracks.
func IsSoundCloudURL(u string) bool {
	return strings.Contains(strings.ToLower(u), "soundcloud.com")
}

const expandTimeout = 60 * time.Second

// ExpandPlaylist expands a playlist URL into its ordered track URLs
// using yt-dlp's flat extraction (no downloads). Entries are returned in
// the order the service reports them. A service/network failure is
// returned as an error, never as an empty playlist.
func ExpandPlaylist(ctx context.Context, playlistURL string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, expandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--flat-playlist",
		"-j",
		"--no-warnings",
		playlistURL,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, &ClassificationError{URL: playlistURL, Reason: "failed to expand playlist", Err: err}
	}

	var urls []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue // Skip malformed entries
		}

		switch {
		case strings.HasPrefix(entry.URL, "http"):
			// SoundCloud flat entries carry the full track URL.
			urls = append(urls, entry.URL)
		case entry.ID != "":
			// YouTube flat entries only carry the video ID.
			urls = append(urls, watchURL(entry.ID))
		}
	}

	return urls, nil
}

func watchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}
