package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Local struct {
	BaseDir string
}

func NewLocal(baseDir string) *Local {
	return &Local{BaseDir: baseDir}
}

func (l *Local) Put(ctx context.Context, key string, body []byte) error {
	_ = ctx

	// rooted Clean drops any ".." segments, keeping the file under BaseDir
	clean := filepath.Clean("/" + key)
	dstPath := filepath.Join(l.BaseDir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dstPath, body, 0o640)
}

func (l *Local) String() string { return fmt.Sprintf("local(%s)", l.BaseDir) }
