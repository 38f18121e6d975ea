// Package storage holds the document vault bytes. Backends register themselves from
// their own package init and are selected by STORAGE_BACKEND; the server imports each
// backend with a blank import.
//
// Backends expose no URL-generation method; every byte leaves the vault through
// the access-controlled delivery path.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotExist is returned by Download when no object exists at the path.
var ErrNotExist = errors.New("storage: object does not exist")

type Storage interface {
	// Upload stores a file and returns its path, size and SHA-256 checksum.
	Upload(ctx context.Context, path string, reader io.Reader) (*UploadResult, error)

	// Download returns a reader over the stored bytes. Callers close it.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a file. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	Exists(ctx context.Context, path string) (bool, error)
}

type UploadResult struct {
	Path     string
	Size     int64
	Checksum string
}

// DocumentPath builds the object key of a vault file.
func DocumentPath(parcelleID, documentType, fileID, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	name := fileID
	if ext != "" {
		name = fmt.Sprintf("%s.%s", fileID, ext)
	}
	return path.Join("parcelles", sanitize(parcelleID), sanitize(documentType), name)
}

func sanitize(segment string) string {
	segment = strings.ReplaceAll(segment, "/", "_")
	segment = strings.ReplaceAll(segment, "\\", "_")
	if segment == "." || segment == ".." || segment == "" {
		return "_"
	}
	return segment
}
