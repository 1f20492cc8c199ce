package backend

import "fmt"

// TagSet is the typed set of metadata tags the encoder may write.
// Empty fields are omitted from the encoder invocation entirely; a tag
// is never written with a blank value.
type TagSet struct {
	Title   string
	Artist  string
	Genre   string
	Comment string
}

// IsEmpty reports whether no tag is set.
func (t TagSet) IsEmpty() bool {
	return t.Title == "" && t.Artist == "" && t.Genre == "" && t.Comment == ""
}

// encoderArgs returns the repeated -metadata flags for all non-empty
// tags, in a stable order.
func (t TagSet) encoderArgs() []string {
	var args []string
	add := func(key, value string) {
		if value != "" {
			args = append(args, "-metadata", fmt.Sprintf("%s=%s", key, value))
		}
	}
	add("title", t.Title)
	add("artist", t.Artist)
	add("genre", t.Genre)
	add("comment", t.Comment)
	return args
}

// LengthComment formats a track duration in seconds as the comment tag
// written for single-track additions, e.g. "Length: 3:07".
func LengthComment(durationSeconds float64) string {
	if durationSeconds <= 0 {
		return ""
	}
	total := int(durationSeconds)
	return fmt.Sprintf("Length: %d:%02d", total/60, total%60)
}
