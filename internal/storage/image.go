// Package storage holds the external image host used for avatars.
package storage

import (
	"errors"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedImage is returned for content that is not a JPEG, PNG or GIF.
var ErrUnsupportedImage = errors.New("only jpeg, png and gif images are allowed")

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// DetectImageType sniffs data and returns its MIME type and file extension.
// The declared type of an upload is never trusted.
func DetectImageType(data []byte) (contentType, ext string, err error) {
	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		if ext, ok := allowedImageTypes[m.String()]; ok {
			return m.String(), ext, nil
		}
	}
	return "", "", ErrUnsupportedImage
}
