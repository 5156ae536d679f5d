package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-storybook")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-storybook" {
			t.Errorf("expected path /tmp/test-storybook, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-storybook")

	t.Run("DataPath", func(t *testing.T) {
		expected := "/tmp/test-storybook/data"
		if dir.DataPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.DataPath())
		}
	})

	t.Run("ConfigPath", func(t *testing.T) {
		expected := "/tmp/test-storybook/config.yaml"
		if dir.ConfigPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ConfigPath())
		}
	})

	t.Run("PagePath pads page numbers", func(t *testing.T) {
		expected := "/tmp/test-storybook/data/book-1/page_0003.png"
		if got := dir.PagePath("book-1", 3); got != expected {
			t.Errorf("expected %s, got %s", expected, got)
		}
	})
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(filepath.Join(tmpDir, "storybook-home"))

	if dir.Exists() {
		t.Fatal("directory should not exist yet")
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}
	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}
	if _, err := os.Stat(dir.DataPath()); err != nil {
		t.Errorf("data directory missing: %v", err)
	}
}

func TestDir_SavePage(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(tmpDir)

	path, err := dir.SavePage("book-1", 2, []byte("png-bytes"))
	if err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}
	if path != dir.PagePath("book-1", 2) {
		t.Errorf("unexpected path %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved page: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("unexpected contents %q", data)
	}
}
