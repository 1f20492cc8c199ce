package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wader/goutubedl"
)

// Track fetching: best-audio download plus metadata extraction, with
// region-locked preview detection and YouTube fallback.

// SoundCloud serves a truncated ~30s stand-in for tracks that are not
// licensed in the caller's region. The signature is a reported duration
// strictly between these bounds on a soundcloud.com URL.
const (
	regionLockMinDuration = 29.0
	regionLockMaxDuration = 31.0
)

// maxFallbackHops bounds how many times a region-locked track may be
// replaced by a fallback URL. A fallback result is assumed directly
// fetchable, so one hop suffices and termination is guaranteed.
const maxFallbackHops = 1

// FetchResult describes a downloaded track. The file at LocalPath is
// owned by the caller once returned; the transcoder consumes and deletes
// it for remote items.
type FetchResult struct {
	LocalPath string
	Title     string
	Uploader  string
	Artist    string
	Genre     string
	Duration  float64
	Thumbnail string
}

// FetchError is a structured, non-fatal fetch failure. Network errors,
// extraction errors and unresolvable region locks all surface as a
// FetchError; nothing escapes the fetch boundary as a panic.
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads tracks into the private downloads directory.
type Fetcher struct {
	downloadsDir string
	resolver     *FallbackResolver
}

// NewFetcher creates a Fetcher using the app temp downloads directory.
func NewFetcher(resolver *FallbackResolver) (*Fetcher, error) {
	dir, err := DownloadsDir()
	if err != nil {
		return nil, fmt.Errorf("failed to create downloads dir: %w", err)
	}
	return &Fetcher{downloadsDir: dir, resolver: resolver}, nil
}

// isRegionLockedPreview reports whether a fetched track matches the
// known preview-truncation signature. The bounds are strict: durations
// of exactly 29 or 31 seconds do not trigger it.
func isRegionLockedPreview(trackURL string, duration float64) bool {
	return IsSoundCloudURL(trackURL) &&
		duration > regionLockMinDuration &&
		duration < regionLockMaxDuration
}

// Fetch downloads the best available audio for trackURL into the private
// downloads directory, using a temp filename derived from destStem.
// Region-locked previews are deleted and re-fetched once from a fallback
// URL; if no fallback exists, a definitive FetchError is returned.
func (f *Fetcher) Fetch(ctx context.Context, trackURL, destStem string) (*FetchResult, error) {
	currentURL := trackURL

	for hop := 0; ; hop++ {
		result, err := f.fetchOnce(ctx, currentURL, destStem)
		if err != nil {
			return nil, &FetchError{URL: currentURL, Reason: "download failed", Err: err}
		}

		if hop < maxFallbackHops && isRegionLockedPreview(currentURL, result.Duration) {
			slog.Warn("region-locked preview detected",
				"title", result.Title, "duration", result.Duration)

			if err := os.Remove(result.LocalPath); err != nil {
				slog.Debug("failed to remove preview file", "path", result.LocalPath, "err", err)
			}

			fallbackURL, found := f.resolver.Resolve(ctx, result.Title, result.Uploader)
			if !found {
				return nil, &FetchError{URL: currentURL, Reason: "region-locked preview, no fallback found"}
			}

			slog.Info("re-fetching from fallback", "url", fallbackURL)
			currentURL = fallbackURL
			continue
		}

		slog.Info("downloaded", "title", result.Title, "path", filepath.Base(result.LocalPath))
		return result, nil
	}
}

// fetchOnce performs one metadata-extract-and-download round trip.
func (f *Fetcher) fetchOnce(ctx context.Context, trackURL, destStem string) (*FetchResult, error) {
	result, err := goutubedl.New(ctx, trackURL, goutubedl.Options{
		Type: goutubedl.TypeSingle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract info: %w", err)
	}

	info := result.Info

	ext := info.Ext
	if ext == "" {
		ext = "m4a"
	}
	localPath := filepath.Join(f.downloadsDir, fmt.Sprintf("%s.%s", destStem, ext))

	dl, err := result.Download(ctx, "bestaudio/best")
	if err != nil {
		return nil, fmt.Errorf("failed to start download: %w", err)
	}
	defer dl.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create download file: %w", err)
	}

	if _, err := io.Copy(out, dl); err != nil {
		out.Close()
		os.Remove(localPath)
		return nil, fmt.Errorf("download interrupted: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(localPath)
		return nil, fmt.Errorf("failed to finalize download file: %w", err)
	}

	title := info.Title
	if title == "" {
		title = filepath.Base(localPath)
	}

	return &FetchResult{
		LocalPath: localPath,
		Title:     title,
		Uploader:  info.Uploader,
		Artist:    artistFromInfo(info),
		Genre:     genreFromRawInfo(result.RawJSON),
		Duration:  info.Duration,
		Thumbnail: info.Thumbnail,
	}, nil
}

// artistFromInfo picks the best artist value from the extractor fields.
func artistFromInfo(info goutubedl.Info) string {
	if info.Artist != "" {
		return info.Artist
	}
	if info.Creator != "" {
		return info.Creator
	}
	return info.Uploader
}

// genreFromRawInfo pulls the optional genre field out of the raw
// extractor JSON; goutubedl does not surface it in its typed Info.
func genreFromRawInfo(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var extra struct {
		Genre string `json:"genre"`
	}
	if err := json.Unmarshal(raw, &extra); err != nil {
		return ""
	}
	return extra.Genre
}
