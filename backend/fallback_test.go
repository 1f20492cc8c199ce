package backend

import (
	"context"
	"fmt"
	"testing"
)

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Song Title (Official Video)", "Song Title"},
		{"Song Title [HQ]", "Song Title"},
		{"Song Title", "Song Title"},
		{"Song (feat. Someone) Title", "Song (feat. Someone) Title"},
		{"  padded  ", "padded"},
		{"(everything)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := cleanQuery(tt.input); got != tt.expected {
				t.Errorf("cleanQuery(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestQueryVariants_WithArtist(t *testing.T) {
	got := queryVariants("Title", "Artist")
	want := []string{
		"Artist - Title",
		"Artist Title",
		"Title Artist",
		"Artist Title audio",
		"Artist Title song",
		"Title",
		"Title audio",
		"Title song",
	}

	if len(got) != len(want) {
		t.Fatalf("got %d variants, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("variant[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestQueryVariants_NoArtist(t *testing.T) {
	got := queryVariants("Title", "")
	want := []string{"Title", "Title audio", "Title song"}

	if len(got) != len(want) {
		t.Fatalf("got %d variants, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("variant[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	var queries []string
	search := func(ctx context.Context, query string, limit int) ([]SearchResult, error) {
		queries = append(queries, query)
		switch len(queries) {
		case 1:
			return nil, fmt.Errorf("service unavailable")
		case 2:
			return nil, nil // no candidates
		default:
			return []SearchResult{
				{ID: "winner123", Title: "Found It"},
				{ID: "second456", Title: "Also Found"},
			}, nil
		}
	}

	r := NewFallbackResolverWithSearch(search)
	url, found := r.Resolve(context.Background(), "Title", "Artist")

	if !found {
		t.Fatal("expected a fallback match")
	}
	if url != watchURL("winner123") {
		t.Errorf("url = %q, want %q", url, watchURL("winner123"))
	}
	if len(queries) != 3 {
		t.Errorf("expected 3 search calls before a match, got %d: %v", len(queries), queries)
	}
	if queries[0] != "Artist - Title" || queries[1] != "Artist Title" {
		t.Errorf("unexpected variant order: %v", queries)
	}
}

func TestResolve_SkipsEmptyIDs(t *testing.T) {
	search := func(ctx context.Context, query string, limit int) ([]SearchResult, error) {
		return []SearchResult{{ID: "", Title: "ghost"}, {ID: "real789", Title: "real"}}, nil
	}

	r := NewFallbackResolverWithSearch(search)
	url, found := r.Resolve(context.Background(), "Title", "")

	if !found {
		t.Fatal("expected a match")
	}
	if url != watchURL("real789") {
		t.Errorf("url = %q, want %q", url, watchURL("real789"))
	}
}

func TestResolve_NothingFound(t *testing.T) {
	calls := 0
	search := func(ctx context.Context, query string, limit int) ([]SearchResult, error) {
		calls++
		return nil, nil
	}

	r := NewFallbackResolverWithSearch(search)
	_, found := r.Resolve(context.Background(), "Title", "Artist")

	if found {
		t.Error("expected no match")
	}
	if calls != 8 {
		t.Errorf("expected all 8 variants tried, got %d", calls)
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	search := func(ctx context.Context, query string, limit int) ([]SearchResult, error) {
		t.Error("search should not run after cancellation")
		return nil, nil
	}

	r := NewFallbackResolverWithSearch(search)
	if _, found := r.Resolve(ctx, "Title", ""); found {
		t.Error("expected no match on cancelled context")
	}
}
