package backend

import (
	"strings"
	"testing"
)

func TestTagSet_EncoderArgs(t *testing.T) {
	tests := []struct {
		name string
		tags TagSet
		want []string
	}{
		{
			name: "all tags",
			tags: TagSet{Title: "T", Artist: "A", Genre: "G", Comment: "C"},
			want: []string{
				"-metadata", "title=T",
				"-metadata", "artist=A",
				"-metadata", "genre=G",
				"-metadata", "comment=C",
			},
		},
		{
			name: "empty tags omitted",
			tags: TagSet{Title: "T", Genre: "G"},
			want: []string{"-metadata", "title=T", "-metadata", "genre=G"},
		},
		{
			name: "no tags",
			tags: TagSet{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tags.encoderArgs()
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("encoderArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTagSet_IsEmpty(t *testing.T) {
	if !(TagSet{}).IsEmpty() {
		t.Error("zero TagSet should be empty")
	}
	if (TagSet{Comment: "x"}).IsEmpty() {
		t.Error("TagSet with a comment should not be empty")
	}
}

func TestLengthComment(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{187, "Length: 3:07"},
		{60, "Length: 1:00"},
		{59.9, "Length: 0:59"},
		{0, ""},
		{-5, ""},
	}

	for _, tt := range tests {
		if got := LengthComment(tt.seconds); got != tt.expected {
			t.Errorf("LengthComment(%v) = %q, want %q", tt.seconds, got, tt.expected)
		}
	}
}
