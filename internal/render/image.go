package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/iksnae/agent-chat/internal"
)

// ImageInfo describes decoded image chart data
type ImageInfo struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// DecodeImage decodes base64 image data, with or without a data: URI prefix
func DecodeImage(encoded string) (ImageInfo, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return ImageInfo{}, errors.New("image data is empty")
	}
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	encoded = strings.Join(strings.Fields(encoded), "")

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		var rawErr error
		raw, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if rawErr != nil {
			return ImageInfo{}, fmt.Errorf("invalid base64 image data: %w", err)
		}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("unsupported image data: %w", err)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height, Data: raw}, nil
}

// SaveImage writes an image chart into dir and returns the file path
func SaveImage(img internal.ImageChart, dir string) (string, error) {
	info, err := DecodeImage(img.ImageData)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	name := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(img.Title), "-"), "-")
	if name == "" {
		name = "chart"
	}
	ext := info.Format
	if ext == "jpeg" {
		ext = "jpg"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", name, uuid.NewString()[:8], ext))
	if err := os.WriteFile(path, info.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	internal.LogInfo("Saved image chart to %s", path)
	return path, nil
}
