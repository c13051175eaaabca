package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const LocalBackend = "local"

// Local leaves archives in the temp directory and serves them through the
// download route.
type Local struct {
	dir         string
	downloadURL string
}

func NewLocal(dir, downloadURL string) *Local {
	return &Local{dir: dir, downloadURL: downloadURL}
}

func (l *Local) Name() string {
	return LocalBackend
}

func (l *Local) Persist(_ context.Context, localPath, _ string) (Reference, error) {
	name := filepath.Base(localPath)
	if _, err := os.Stat(filepath.Join(l.dir, name)); err != nil {
		return Reference{}, fmt.Errorf("archive not in %s: %w", l.dir, err)
	}
	return Reference{
		Backend:     LocalBackend,
		Filename:    name,
		DownloadURL: l.downloadURL + "/" + name,
	}, nil
}

// Open resolves a client-supplied filename inside the archive directory.
// Anything that is not a plain base name is treated as missing.
func (l *Local) Open(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", ErrNotFound
	}
	p := filepath.Join(l.dir, filename)
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return p, nil
}
