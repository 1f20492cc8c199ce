package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// FFmpeg transcoding to the fixed Vorbis/.ogg target format.

const (
	// TrackExt is the fixed output container/extension the game reads.
	TrackExt = ".ogg"

	audioCodec = "libvorbis"

	// Loudness normalization parameters (EBU R128 loudnorm filter).
	normalizationFilter = "loudnorm=I=-18:LRA=11:TP=-1.5"
)

// QualityProfile selects the encoder bitrate/sample-rate/channel tuple.
type QualityProfile string

const (
	// QualityStandard keeps files small; the game imports them quickly.
	QualityStandard QualityProfile = "standard"
	// QualityHigh is full quality; the game takes much longer to import.
	QualityHigh QualityProfile = "high"
)

// encoderArgs returns the ffmpeg audio parameters for the profile.
func (p QualityProfile) encoderArgs() []string {
	if p == QualityHigh {
		return []string{"-ab", "320k", "-ar", "48000"}
	}
	return []string{"-ab", "96k", "-ac", "2", "-ar", "22050"}
}

// TrackFileName returns the output file name for a track index.
func TrackFileName(index int) string {
	return fmt.Sprintf("track%d%s", index, TrackExt)
}

// ConvertRequest describes one transcode operation.
type ConvertRequest struct {
	InputPath  string
	Index      int
	DestFolder string
	Profile    QualityProfile
	Normalize  bool
	Tags       TagSet

	// DeleteOriginal removes InputPath after a successful conversion.
	// True for freshly downloaded tracks, false for user-selected local
	// files, which must be preserved.
	DeleteOriginal bool
}

// ConvertError is a structured transcode failure carrying the encoder's
// diagnostic output.
type ConvertError struct {
	Command string
	Args    []string
	Stderr  string
	Err     error
}

func (e *ConvertError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffmpeg error: %v\nstderr: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("conversion error: %v", e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }

// Transcoder converts fetched audio files into the destination format.
type Transcoder struct {
	// FFmpegPath is the encoder binary. Overridable for tests.
	FFmpegPath string

	scratchDir string
}

// NewTranscoder creates a Transcoder using the app temp scratch
// directory and the resolved ffmpeg binary.
func NewTranscoder() (*Transcoder, error) {
	dir, err := TempFilesDir()
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return &Transcoder{FFmpegPath: GetFFmpegPath(), scratchDir: dir}, nil
}

// Convert transcodes the input file to <DestFolder>/track<Index>.ogg,
// overwriting any pre-existing file of that name. On any failure the
// scratch copy and any partial output are removed and the original input
// is left untouched. On success the scratch copy is always removed and
// the original is removed only when DeleteOriginal is set.
//
// The encoder subprocess always runs to completion once started;
// cancellation takes effect at pipeline item boundaries, not mid-encode.
func (t *Transcoder) Convert(ctx context.Context, req ConvertRequest) (string, error) {
	if _, err := os.Stat(req.InputPath); err != nil {
		return "", &ConvertError{Err: fmt.Errorf("input file does not exist: %s", req.InputPath)}
	}

	// Work on a private scratch copy so the encoder never sees the
	// original path, which may carry filesystem/encoding hazards.
	scratchPath, err := t.scratchCopy(req.InputPath, req.Index)
	if err != nil {
		return "", &ConvertError{Err: fmt.Errorf("failed to create scratch copy: %w", err)}
	}
	defer func() {
		if err := os.Remove(scratchPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to clean up scratch file", "path", scratchPath, "err", err)
		}
	}()

	outPath := filepath.Join(req.DestFolder, TrackFileName(req.Index))
	args := buildEncoderArgs(scratchPath, outPath, req.Profile, req.Normalize, req.Tags)

	slog.Debug("running encoder", "args", args)

	cmd := exec.Command(t.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outPath) // No partial output survives a failed encode.
		return "", &ConvertError{
			Command: t.FFmpegPath,
			Args:    args,
			Stderr:  stderr.String(),
			Err:     err,
		}
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", &ConvertError{
			Command: t.FFmpegPath,
			Args:    args,
			Stderr:  stderr.String(),
			Err:     fmt.Errorf("encoder reported success but output is missing: %w", err),
		}
	}

	if req.DeleteOriginal {
		if err := os.Remove(req.InputPath); err != nil {
			slog.Warn("failed to remove original file", "path", req.InputPath, "err", err)
		}
	}

	slog.Info("converted", "index", req.Index, "output", filepath.Base(outPath))
	return outPath, nil
}

// buildEncoderArgs constructs the full ffmpeg argument list: overwrite,
// strip video streams, force the Vorbis codec, optional loudness
// normalization, metadata tags for non-empty fields, profile parameters.
func buildEncoderArgs(inputPath, outPath string, profile QualityProfile, normalize bool, tags TagSet) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-c:a", audioCodec,
	}

	if normalize {
		args = append(args, "-af", normalizationFilter)
	}

	args = append(args, tags.encoderArgs()...)
	args = append(args, profile.encoderArgs()...)
	args = append(args, outPath)
	return args
}

// scratchCopy copies the input into the scratch directory under a
// generated collision-free name, preserving the extension.
func (t *Transcoder) scratchCopy(inputPath string, index int) (string, error) {
	ext := filepath.Ext(inputPath)
	name := fmt.Sprintf("scratch_%d_%s%s", index, uuid.NewString()[:8], ext)
	scratchPath := filepath.Join(t.scratchDir, name)

	if err := copyFile(inputPath, scratchPath); err != nil {
		os.Remove(scratchPath)
		return "", err
	}
	return scratchPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// GetFFmpegPath returns the encoder binary path, preferring a bundled
// copy under the app data dir over the system PATH.
func GetFFmpegPath() string {
	bundledPaths := []string{
		filepath.Join(GetDataPath(), "bin", "ffmpeg"),
		filepath.Join(GetDataPath(), "bin", "ffmpeg.exe"),
	}
	for _, p := range bundledPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path
	}

	return "ffmpeg"
}

// CheckFFmpegInstalled verifies the encoder is available.
func CheckFFmpegInstalled() error {
	cmd := exec.Command(GetFFmpegPath(), "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}
