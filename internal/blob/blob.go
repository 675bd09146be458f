// Package blob stores uploaded files (army lists, score sheets, table photos)
// in an S3-compatible bucket and hands back a public link.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrNotConfigured = errors.New("blob storage is not configured")

type Object struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store puts an object and returns the URL it can be fetched from.
type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
}

// ObjectKey builds "<folder>/<uuid>-<slug>.<ext>". The slug falls back to
// "file" when the name has nothing sluggable.
func ObjectKey(folder, filename, ext string) string {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	name := slug.Make(base)
	if name == "" {
		name = "file"
	}

	key := uuid.New().String() + "-" + name
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		key += "." + ext
	}

	folder = slug.Make(folder)
	if folder == "" {
		folder = "uploads"
	}
	return folder + "/" + key
}

// PublicURL joins base and key with exactly one slash.
func PublicURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(key, "/")
}
