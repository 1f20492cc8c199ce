package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// YouTube fallback search for region-locked SoundCloud previews.

// searchLimit bounds how many candidates each query variant may return.
const searchLimit = 3

const searchTimeout = 30 * time.Second

// SearchResult is one candidate returned by the fallback search backend.
type SearchResult struct {
	ID    string
	Title string
}

// SearchFunc executes a bounded search and returns candidates in the
// backend's ranking order.
type SearchFunc func(ctx context.Context, query string, limit int) ([]SearchResult, error)

// FallbackResolver finds a replacement URL on YouTube for a track whose
// original source only served a truncated preview.
type FallbackResolver struct {
	search SearchFunc
}

// NewFallbackResolver returns a resolver backed by yt-dlp's ytsearch.
func NewFallbackResolver() *FallbackResolver {
	return &FallbackResolver{search: ytSearch}
}

// NewFallbackResolverWithSearch returns a resolver using a custom search
// backend.
func NewFallbackResolverWithSearch(search SearchFunc) *FallbackResolver {
	return &FallbackResolver{search: search}
}

var (
	trailingParens   = regexp.MustCompile(`\s*\(.*?\)\s*$`)
	trailingBrackets = regexp.MustCompile(`\s*\[.*?\]\s*$`)
)

// cleanQuery strips trailing parenthetical/bracketed suffixes such as
// "(Official Video)" or "[HQ]" that hurt match quality.
func cleanQuery(query string) string {
	query = trailingParens.ReplaceAllString(query, "")
	query = trailingBrackets.ReplaceAllString(query, "")
	return strings.TrimSpace(query)
}

// queryVariants builds the ordered list of search queries to try.
// Artist-qualified variants come first when the artist is known.
func queryVariants(title, artist string) []string {
	var queries []string

	if artist != "" {
		queries = append(queries,
			fmt.Sprintf("%s - %s", artist, title),
			fmt.Sprintf("%s %s", artist, title),
			fmt.Sprintf("%s %s", title, artist),
			fmt.Sprintf("%s %s audio", artist, title),
			fmt.Sprintf("%s %s song", artist, title),
		)
	}

	queries = append(queries,
		title,
		title+" audio",
		title+" song",
	)

	return queries
}

// Resolve tries each query variant in order and returns the canonical
// watch URL of the first candidate with a resolvable ID. Variants that
// error or return nothing are logged and skipped; found is false only
// after every variant has been exhausted.
func (r *FallbackResolver) Resolve(ctx context.Context, title, artist string) (url string, found bool) {
	slog.Info("searching fallback", "title", title, "artist", artist)

	for _, query := range queryVariants(title, artist) {
		if ctx.Err() != nil {
			return "", false
		}

		clean := cleanQuery(query)
		if clean == "" {
			continue
		}

		results, err := r.search(ctx, clean, searchLimit)
		if err != nil {
			slog.Debug("fallback search failed", "query", clean, "err", err)
			continue
		}

		for _, result := range results {
			if result.ID != "" {
				slog.Info("fallback match found", "query", clean, "title", result.Title)
				return watchURL(result.ID), true
			}
		}
	}

	slog.Warn("no fallback found", "title", title, "artist", artist)
	return "", false
}

// ytSearch runs a flat ytsearchN query through yt-dlp.
func ytSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	searchURL := fmt.Sprintf("ytsearch%d:%s", limit, query)

	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--flat-playlist",
		"-j",
		"--no-warnings",
		searchURL,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var results []SearchResult
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.ID == "" {
			continue
		}

		results = append(results, SearchResult{ID: entry.ID, Title: entry.Title})
	}

	return results, nil
}
