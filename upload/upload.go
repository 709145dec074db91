// Package upload sends report photos to a blob host and returns their public
// URL. Uploads are never retried.
package upload

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	ErrNotImage = errors.New("Select an image.")
	ErrDisabled = errors.New("image uploads are not configured")
)

// File is an image received from a client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)
}

// Error carries the host's own failure message, shown to the user as is.
type Error struct {
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "Upload failed"
	}
	return e.Message
}

// CheckImage rejects anything that is not declared as an image.
func CheckImage(f File) error {
	if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		return ErrNotImage
	}
	return nil
}

// Disabled is used when no host is configured; only submissions without a
// photo succeed.
type Disabled struct{}

func (Disabled) Upload(_ context.Context, f File) (string, error) {
	if err := CheckImage(f); err != nil {
		return "", err
	}
	return "", ErrDisabled
}
