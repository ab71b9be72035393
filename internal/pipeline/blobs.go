package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/doccapture/internal/common"
)

// BlobStore persists prepared image bytes and hands back a URI the rest
// of the system treats as opaque.
type BlobStore interface {
	SaveImage(localID string, data []byte) (string, error)
}

// DirBlobStore writes blobs into a flat directory, one JPEG per capture.
type DirBlobStore struct {
	dir string
}

func NewDirBlobStore(dir string) (*DirBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.WrapError(err, "create blob dir")
	}
	return &DirBlobStore{dir: dir}, nil
}

func (s *DirBlobStore) SaveImage(localID string, data []byte) (string, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("%s.jpg", localID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", common.WrapError(err, "write image blob")
	}
	return path, nil
}
