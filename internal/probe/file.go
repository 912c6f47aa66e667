package probe

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync/atomic"

	"github.com/phrazzld/taskrunner/internal/platform/logger"
)

// FileExistsTask checks whether a path exists on the local filesystem.
type FileExistsTask struct {
	path     string
	complete atomic.Bool
}

// NewFileExistsTask creates a task that checks for path.
func NewFileExistsTask(path string) *FileExistsTask {
	return &FileExistsTask{path: path}
}

// Path returns the path being checked.
func (t *FileExistsTask) Path() string {
	return t.path
}

// Invoke reports whether the path exists. Stat failures other than a missing
// file are treated as the file not existing.
func (t *FileExistsTask) Invoke(ctx context.Context) (bool, error) {
	_, err := os.Stat(t.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.FromContext(ctx).Debug("file stat failed",
				"path", t.path,
				"error", err)
		}
		return false, nil
	}

	t.complete.Store(true)
	return true, nil
}

// IsComplete reports whether the file has been seen to exist.
func (t *FileExistsTask) IsComplete() bool {
	return t.complete.Load()
}
