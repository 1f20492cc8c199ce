package backend

import (
	"errors"
	"strings"
	"testing"
)

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		platform Platform
		kind     SourceKind
	}{
		{
			name:     "youtube watch link",
			url:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			platform: PlatformYouTube,
			kind:     KindSingleTrack,
		},
		{
			name:     "youtu.be short link",
			url:      "https://youtu.be/dQw4w9WgXcQ",
			platform: PlatformYouTube,
			kind:     KindSingleTrack,
		},
		{
			name:     "youtube playlist page",
			url:      "https://www.youtube.com/playlist?list=PL123",
			platform: PlatformYouTube,
			kind:     KindPlaylist,
		},
		{
			name:     "youtube watch link with list param",
			url:      "https://www.youtube.com/watch?v=abc&list=PL123",
			platform: PlatformYouTube,
			kind:     KindPlaylist,
		},
		{
			name:     "soundcloud track",
			url:      "https://soundcloud.com/artist/track-name",
			platform: PlatformSoundCloud,
			kind:     KindSingleTrack,
		},
		{
			name:     "soundcloud set",
			url:      "https://soundcloud.com/artist/sets/my-playlist",
			platform: PlatformSoundCloud,
			kind:     KindPlaylist,
		},
		{
			name:     "unrelated site",
			url:      "https://example.com/watch?v=abc",
			platform: PlatformUnknown,
			kind:     KindInvalid,
		},
		{
			name:     "empty string",
			url:      "",
			platform: PlatformUnknown,
			kind:     KindInvalid,
		},
		{
			name:     "leading whitespace trimmed",
			url:      "  https://soundcloud.com/artist/track  ",
			platform: PlatformSoundCloud,
			kind:     KindSingleTrack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyURL(tt.url)
			if c.Platform != tt.platform {
				t.Errorf("Platform = %q, want %q", c.Platform, tt.platform)
			}
			if c.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", c.Kind, tt.kind)
			}
		})
	}
}

func TestIsSoundCloudURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://soundcloud.com/artist/track", true},
		{"https://SOUNDCLOUD.com/artist/track", true},
		{"https://www.youtube.com/watch?v=abc", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsSoundCloudURL(tt.url); got != tt.want {
			t.Errorf("IsSoundCloudURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestWatchURL(t *testing.T) {
	got := watchURL("dQw4w9WgXcQ")
	want := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	if got != want {
		t.Errorf("watchURL = %q, want %q", got, want)
	}
}

func TestClassificationError(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &ClassificationError{
		URL:    "https://soundcloud.com/artist/sets/mix",
		Reason: "failed to expand playlist",
		Err:    inner,
	}

	if !strings.Contains(err.Error(), err.URL) {
		t.Errorf("message should carry the URL: %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("ClassificationError should unwrap to the inner error")
	}

	bare := &ClassificationError{URL: "u", Reason: "invalid link"}
	if bare.Error() == "" {
		t.Error("Error() without inner error returned empty string")
	}
	if bare.Unwrap() != nil {
		t.Error("Unwrap() without inner error should be nil")
	}
}
