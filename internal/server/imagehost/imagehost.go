// Package imagehost uploads screenshots to an external image store and hands
// back a public URL plus a storage id.
package imagehost

import (
	"context"
	"io"
)

// UploadOptions controls how an image is stored.
//
// MaxWidth and MaxHeight bound the stored image; larger images are shrunk to
// fit while keeping their aspect ratio, smaller ones are left alone. Quality
// is "auto" or a JPEG quality between 1 and 100.
type UploadOptions struct {
	Folder    string
	MaxWidth  int
	MaxHeight int
	Quality   string
}

// ScreenshotOptions are the options used for bug screenshots.
var ScreenshotOptions = UploadOptions{
	Folder:    "bughunt/screenshots",
	MaxWidth:  1200,
	MaxHeight: 800,
	Quality:   "auto",
}

type UploadResult struct {
	URL string
	ID  string
}

type ImageHost interface {
	Upload(ctx context.Context, r io.Reader, contentType string, opts UploadOptions) (*UploadResult, error)
	Delete(ctx context.Context, id string) error
}
