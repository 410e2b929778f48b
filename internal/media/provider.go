// Package media is the object-storage collaborator for uploads: it signs
// short-lived URLs and reports whether a converted stream is available.
package media

import (
	"context"
	"errors"
	"fmt"

	"courtside/internal/models"
)

// ErrDisabled is returned by operations that need object storage when none is configured.
var ErrDisabled = errors.New("media storage is not configured")

// Provider signs object URLs for uploads and inspects conversion output.
type Provider interface {
	// UploadURL is a presigned PUT for the original file.
	UploadURL(ctx context.Context, upload *models.Upload) (string, error)
	// ViewURL points at the HLS manifest.
	ViewURL(ctx context.Context, upload *models.Upload) (string, error)
	ThumbnailURL(ctx context.Context, upload *models.Upload) (string, error)
	// DownloadURL is a presigned GET for the original file.
	DownloadURL(ctx context.Context, upload *models.Upload) (string, error)
	StreamReady(ctx context.Context, upload *models.Upload) (bool, error)
	// StartConvert submits the original for conversion and returns a job id.
	StartConvert(ctx context.Context, upload *models.Upload) (string, error)
	// DeleteObjects removes every stored object of the given uploads.
	DeleteObjects(ctx context.Context, uploadIDs ...uint) error
}

// Object keys, all rooted at uploads/<id>/.
func uploadPrefix(id uint) string {
	return fmt.Sprintf("uploads/%d/", id)
}

func originalKey(u *models.Upload) string {
	return uploadPrefix(u.ID) + u.Filename
}

func manifestKey(u *models.Upload) string {
	return uploadPrefix(u.ID) + "hls/index.m3u8"
}

func thumbnailKey(u *models.Upload) string {
	return uploadPrefix(u.ID) + "thumbnail.0000000.jpg"
}

// Disabled is the Provider used when object storage is not configured.
// URLs are empty and streams are never ready.
type Disabled struct{}

func (Disabled) UploadURL(context.Context, *models.Upload) (string, error)    { return "", nil }
func (Disabled) ViewURL(context.Context, *models.Upload) (string, error)      { return "", nil }
func (Disabled) ThumbnailURL(context.Context, *models.Upload) (string, error) { return "", nil }
func (Disabled) DownloadURL(context.Context, *models.Upload) (string, error)  { return "", nil }
func (Disabled) StreamReady(context.Context, *models.Upload) (bool, error)    { return false, nil }
func (Disabled) DeleteObjects(context.Context, ...uint) error                 { return nil }

func (Disabled) StartConvert(context.Context, *models.Upload) (string, error) {
	return "", ErrDisabled
}
