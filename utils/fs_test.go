package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileOperations_SavePayload(t *testing.T) {
	fileOps := NewFileOperations()

	t.Run("writes_and_renames", func(t *testing.T) {
		tempDir := t.TempDir()
		outputPath := filepath.Join(tempDir, "nested", "clip.mp4")

		written, err := fileOps.SavePayload(outputPath, strings.NewReader("payload"), false)
		if err != nil {
			t.Fatalf("SavePayload failed: %v", err)
		}
		if written != int64(len("payload")) {
			t.Errorf("written = %d", written)
		}

		data, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("Failed to read output: %v", err)
		}
		if string(data) != "payload" {
			t.Errorf("content = %q", data)
		}
		if fileOps.FileExists(outputPath + ".part") {
			t.Error("part file should be renamed away")
		}
	})

	t.Run("refuses_overwrite", func(t *testing.T) {
		tempDir := t.TempDir()
		outputPath := filepath.Join(tempDir, "clip.mp4")
		if err := os.WriteFile(outputPath, []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := fileOps.SavePayload(outputPath, strings.NewReader("new"), false); err == nil {
			t.Fatal("expected error for existing file")
		}

		data, _ := os.ReadFile(outputPath)
		if string(data) != "old" {
			t.Errorf("existing file was modified: %q", data)
		}
	})

	t.Run("overwrite_when_forced", func(t *testing.T) {
		tempDir := t.TempDir()
		outputPath := filepath.Join(tempDir, "clip.mp4")
		if err := os.WriteFile(outputPath, []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := fileOps.SavePayload(outputPath, strings.NewReader("new"), true); err != nil {
			t.Fatalf("SavePayload failed: %v", err)
		}

		data, _ := os.ReadFile(outputPath)
		if string(data) != "new" {
			t.Errorf("content = %q", data)
		}
	})

	t.Run("removes_part_on_read_error", func(t *testing.T) {
		tempDir := t.TempDir()
		outputPath := filepath.Join(tempDir, "clip.mp4")

		_, err := fileOps.SavePayload(outputPath, &failingReader{}, false)
		if err == nil {
			t.Fatal("expected error from failing reader")
		}
		if fileOps.FileExists(outputPath) || fileOps.FileExists(outputPath+".part") {
			t.Error("no file should remain after a failed write")
		}
	})
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestFileOperations_UniquePath(t *testing.T) {
	fileOps := NewFileOperations()
	tempDir := t.TempDir()

	first := fileOps.UniquePath(tempDir, "video.mp4")
	if first != filepath.Join(tempDir, "video.mp4") {
		t.Errorf("first = %q", first)
	}

	if err := os.WriteFile(first, nil, 0644); err != nil {
		t.Fatal(err)
	}
	second := fileOps.UniquePath(tempDir, "video.mp4")
	if second != filepath.Join(tempDir, "video (1).mp4") {
		t.Errorf("second = %q", second)
	}

	if err := os.WriteFile(second, nil, 0644); err != nil {
		t.Fatal(err)
	}
	third := fileOps.UniquePath(tempDir, "video.mp4")
	if third != filepath.Join(tempDir, "video (2).mp4") {
		t.Errorf("third = %q", third)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"clip.mp4", "clip.mp4"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\x\evil.exe`, "evil.exe"},
		{"what?.mp4", "what_.mp4"},
		{"tab\there.mp3", "tabhere.mp3"},
		{"", "download"},
		{"..", "download"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.input); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFileOperations_EnsureDir(t *testing.T) {
	fileOps := NewFileOperations()
	tempDir := t.TempDir()

	target := filepath.Join(tempDir, "a", "b", "file.txt")
	if err := fileOps.EnsureDir(target); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	info, err := os.Stat(filepath.Dir(target))
	if err != nil || !info.IsDir() {
		t.Errorf("directory was not created: %v", err)
	}
}
