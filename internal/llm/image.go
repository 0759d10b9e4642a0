package llm

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// NewImage validates an image attachment. A missing or non-image mimeType is
// replaced by one sniffed from data.
func NewImage(data []byte, mimeType string) (Image, error) {
	if len(data) == 0 {
		return Image{}, errors.New("image is empty")
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return Image{}, fmt.Errorf("unsupported content type %q", mimeType)
	}
	return Image{MIMEType: mimeType, Data: data}, nil
}

// ReadImageFile loads an image attachment from disk.
func ReadImageFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("reading image: %w", err)
	}
	img, err := NewImage(data, "")
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
