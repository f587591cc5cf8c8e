package storage

import (
	"context"
	"fmt"
	"path"
)

// StorageInterface defines the contract for snapshot and screenshot storage
type StorageInterface interface {
	// Store saves data under name and returns a reference to the stored object
	Store(ctx context.Context, name, contentType string, data []byte) (string, error)
	Retrieve(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// SnapshotName is the object name of a stored HTML snapshot for a content fingerprint
func SnapshotName(sourceID, contentHash string) string {
	return path.Join("snapshots", sourceID, contentHash+".html")
}

// ScreenshotName is the object name of a stored screenshot for a content fingerprint
func ScreenshotName(sourceID, contentHash, contentType string) string {
	ext := "png"
	switch contentType {
	case "image/jpeg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	}
	return path.Join("screenshots", sourceID, fmt.Sprintf("%s.%s", contentHash, ext))
}
