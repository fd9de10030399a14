package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Dir writes backups as files in a local directory.
type Dir struct {
	path string
}

// NewDir creates the directory when missing.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating backup directory %s", path)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) Put(_ context.Context, name string, r io.Reader) (string, error) {
	dest := filepath.Join(d.path, filepath.Base(name))
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", dest)
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", errors.Wrapf(err, "writing %s", dest)
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrapf(err, "closing %s", dest)
	}
	return dest, nil
}
