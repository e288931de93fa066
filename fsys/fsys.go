// Package fsys abstracts the few filesystem calls the stores need so tests
// can observe and break them.
package fsys

import (
	"errors"
	"io/fs"
	"os"
)

// FS is the structured file interface used by atomicfile.
// Missing files are reported with errors matching fs.ErrNotExist.
type FS interface {
	Exists(name string) (bool, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	// Rename replaces newpath with oldpath in a single step.
	Rename(oldpath, newpath string) error
	Remove(name string) error
	MkdirAll(path string, perm fs.FileMode) error
}

// OS is the real filesystem.
type OS struct{}

func (OS) Exists(name string) (bool, error) {
	_, err := os.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (OS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

// WriteFile writes and fsyncs data so a following rename publishes complete
// contents.
func (OS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (OS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (OS) Remove(name string) error                     { return os.Remove(name) }
func (OS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

var _ FS = OS{}
