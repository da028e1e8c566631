package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "evidence")

	store, err := NewStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, dir, store.Dir())
}

func TestSaveWritesTimestampedJPEG(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	firedAt := time.Unix(1724580000, 0)
	path, err := store.Save(frame, firedAt)
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("threat_%d.jpg", firedAt.Unix()), filepath.Base(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSaveRejectsEmptyFrame(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(gocv.NewMat(), time.Now())
	assert.Error(t, err)
}
