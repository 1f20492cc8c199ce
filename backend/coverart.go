package backend

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // decoder registration
	_ "image/jpeg" // decoder registration
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// Cover art download and finalization for the CD slots.

// coverSize is the fixed square resolution the game expects.
const coverSize = 512

// CoverSource abstracts thumbnail download and final cover placement so
// the pipeline can be tested without network access.
type CoverSource interface {
	FetchThumbnail(ctx context.Context, url string) (string, error)
	Finalize(srcPath, destPath string) error
}

// CoverService downloads thumbnails into the private thumbnails
// directory and renders the finalized square cover image.
type CoverService struct {
	client    *http.Client
	thumbsDir string
}

// NewCoverService creates a CoverService using the app temp thumbnails
// directory.
func NewCoverService(client *http.Client) (*CoverService, error) {
	dir, err := ThumbnailsDir()
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnails dir: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &CoverService{client: client, thumbsDir: dir}, nil
}

// FetchThumbnail downloads a thumbnail URL to a private temp file and
// returns its path.
func (s *CoverService) FetchThumbnail(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid thumbnail URL: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("thumbnail download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("thumbnail download failed: status %d", resp.StatusCode)
	}

	path := filepath.Join(s.thumbsDir, fmt.Sprintf("coverart_%s.img", uuid.NewString()[:8]))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create thumbnail file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("thumbnail download interrupted: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// Finalize reads the cover source image, scales it to the fixed square
// resolution and writes it as PNG at destPath.
func (s *CoverService) Finalize(srcPath, destPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read cover source: %w", err)
	}

	square, err := renderSquareCover(data, coverSize)
	if err != nil {
		return err
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create cover file: %w", err)
	}

	if err := png.Encode(out, square); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to encode cover: %w", err)
	}
	return out.Close()
}

// renderSquareCover decodes an image and scales it to size x size,
// ignoring the source aspect ratio as the game's fixed-square display
// does. Catmull-Rom is used for quality.
func renderSquareCover(data []byte, size int) (image.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst, nil
}
