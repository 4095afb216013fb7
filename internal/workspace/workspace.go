// Package workspace manages the directory that spawned commands run in and
// that user-created files live in, so both see the same file namespace.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Dir is an existing workspace directory.
type Dir struct {
	path string
}

// File describes a regular file in the workspace.
type File struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Open returns the workspace at path, creating it if absent. Opening an
// existing directory is not an error.
func Open(path string) (*Dir, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %s: %w", path, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", abs)
	}
	return &Dir{path: abs}, nil
}

// Path returns the absolute workspace path.
func (d *Dir) Path() string { return d.path }

// Resolve returns name relative to the workspace; absolute names pass through.
func (d *Dir) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.path, name)
}

// Create writes content to name, replacing any previous content and creating
// parent directories as needed.
func (d *Dir) Create(name, content string) (File, error) {
	if name == "" {
		return File{}, errors.New("file name required")
	}
	path := d.Resolve(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return File{}, fmt.Errorf("create %s: %w", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return File{}, fmt.Errorf("create %s: %w", name, err)
	}
	return d.stat(name)
}

// List returns the regular files directly inside the workspace, sorted by
// name. Files made by shell commands show up alongside created ones.
func (d *Dir) List() ([]File, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("list workspace: %w", err)
	}
	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, File{Name: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	return files, nil
}

// Read returns the content of name.
func (d *Dir) Read(name string) (string, error) {
	if name == "" {
		return "", errors.New("file name required")
	}
	data, err := os.ReadFile(d.Resolve(name))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

// Delete removes the regular file name. Directories are refused.
func (d *Dir) Delete(name string) error {
	if name == "" {
		return errors.New("file name required")
	}
	path := d.Resolve(name)
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if info.IsDir() {
		return fmt.Errorf("delete %s: is a directory", name)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func (d *Dir) stat(name string) (File, error) {
	info, err := os.Stat(d.Resolve(name))
	if err != nil {
		return File{}, err
	}
	return File{Name: name, Size: info.Size(), Modified: info.ModTime()}, nil
}
