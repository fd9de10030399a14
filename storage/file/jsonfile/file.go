// Package jsonfile stores the roster Document as one indented JSON file.
package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/roster/core/roster"
)

const defaultMode os.FileMode = 0o644

// File is a roster.Persister backed by a JSON file on disk.
type File struct {
	path string
	mu   sync.Mutex
}

var _ roster.Persister = (*File)(nil)

func New(path string) *File {
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(path, "path"),
	).CheckAndPanic()
	return &File{path: path}
}

// SaveDocument replaces the file atomically: the document is written to a
// temp file in the same directory, then renamed over the target.
func (f *File) SaveDocument(_ context.Context, doc roster.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding roster document")
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "writing %s", tmp.Name())
	}
	if err = tmp.Chmod(f.fileMode()); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "chmod %s", tmp.Name())
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmp.Name())
	}
	if err = os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrapf(err, "replacing %s", f.path)
	}
	return nil
}

// fileMode keeps the permissions of the file being replaced.
func (f *File) fileMode() os.FileMode {
	if fi, err := os.Stat(f.path); err == nil {
		return fi.Mode().Perm()
	}
	return defaultMode
}

// LoadDocument returns roster.ErrNoDocument when the file does not exist.
func (f *File) LoadDocument(context.Context) (roster.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var doc roster.Document
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return doc, roster.ErrNoDocument
	}
	if err != nil {
		return doc, errors.Wrapf(err, "reading %s", f.path)
	}
	if err = json.Unmarshal(data, &doc); err != nil {
		return doc, errors.Wrapf(err, "decoding %s", f.path)
	}
	return doc, nil
}
