package export

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/dmitrijs2005/handlewatch/internal/filex"
)

// LocalDir writes exports atomically into a directory.
type LocalDir struct {
	Dir string
	now func() time.Time
}

func NewLocalDir(dir string) *LocalDir {
	return &LocalDir{Dir: dir, now: time.Now}
}

func (l *LocalDir) Store(_ context.Context, data []byte) (Result, error) {
	dir, err := filex.EnsureDir(l.Dir)
	if err != nil {
		return Result{}, err
	}
	path := filepath.Join(dir, "handles_"+fileStamp(l.now())+".csv")
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return Result{}, fmt.Errorf("write export: %w", err)
	}
	return Result{Path: path}, nil
}
