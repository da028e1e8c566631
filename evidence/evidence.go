// Package evidence - Persists alert frames to disk for later review.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Store writes triggering frames as JPEG files named by the alert's integer
// unix timestamp, e.g. threat_1724580000.jpg.
type Store struct {
	dir string
}

// NewStore creates the output directory if needed and returns a store
// writing into it.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create evidence directory %s", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory evidence is written into.
func (s *Store) Dir() string {
	return s.dir
}

// Save encodes the frame as a JPEG and returns the path it was written to.
func (s *Store) Save(frame gocv.Mat, firedAt time.Time) (string, error) {
	if frame.Empty() {
		return "", errors.New("refusing to save empty frame")
	}
	path := filepath.Join(s.dir, fmt.Sprintf("threat_%d.jpg", firedAt.Unix()))
	if ok := gocv.IMWrite(path, frame); !ok {
		return "", errors.Errorf("write evidence frame %s", path)
	}
	return path, nil
}
