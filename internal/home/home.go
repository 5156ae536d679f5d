package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the storybook home directory.
	DefaultDirName = ".storybook"

	// DataDirName is the subdirectory for generated book data.
	DataDirName = "data"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the storybook home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.storybook).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create data directory (this also creates the parent)
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// BookDir returns the directory holding a book's generated pages.
func (d *Dir) BookDir(bookID string) string {
	return filepath.Join(d.DataPath(), bookID)
}

// PagePath returns the path to a generated page image.
// The anchor cutout is page 0.
func (d *Dir) PagePath(bookID string, page int) string {
	return filepath.Join(d.BookDir(bookID), fmt.Sprintf("page_%04d.png", page))
}

// EnsureBookDir creates the directory for a book's generated pages.
func (d *Dir) EnsureBookDir(bookID string) error {
	return os.MkdirAll(d.BookDir(bookID), 0o755)
}

// SavePage writes a generated page image to the book's data directory.
func (d *Dir) SavePage(bookID string, page int, imagePNG []byte) (string, error) {
	if err := d.EnsureBookDir(bookID); err != nil {
		return "", fmt.Errorf("failed to create book directory: %w", err)
	}
	path := d.PagePath(bookID, page)
	if err := os.WriteFile(path, imagePNG, 0o644); err != nil {
		return "", fmt.Errorf("failed to write page image: %w", err)
	}
	return path, nil
}
