package shell

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"

	"mediafetch/internal"
	"mediafetch/utils"
)

// SaveDialogResult is the answer to a save dialog
type SaveDialogResult struct {
	Canceled bool   `json:"canceled"`
	FilePath string `json:"filePath,omitempty"`
}

// Dialogs shows native dialogs on behalf of the UI
type Dialogs interface {
	ShowSave(ctx context.Context, suggestedName string) (SaveDialogResult, error)
	ShowMessage(title, message, detail string) error
}

// Opener hands a path to the operating system's file manager
type Opener interface {
	Open(path string) error
}

// HeadlessDialogs answers save dialogs with a free path in the downloads
// directory and prints messages to out
type HeadlessDialogs struct {
	dir   string
	out   io.Writer
	files *utils.FileOperations
}

// NewHeadlessDialogs creates dialogs rooted at the downloads directory
func NewHeadlessDialogs(downloadsDir string, out io.Writer) *HeadlessDialogs {
	return &HeadlessDialogs{dir: downloadsDir, out: out, files: utils.NewFileOperations()}
}

// ShowSave proposes dir/suggestedName, numbered if it already exists
func (d *HeadlessDialogs) ShowSave(ctx context.Context, suggestedName string) (SaveDialogResult, error) {
	if err := ctx.Err(); err != nil {
		return SaveDialogResult{Canceled: true}, err
	}
	if suggestedName == "" {
		suggestedName = "download"
	}
	return SaveDialogResult{FilePath: d.files.UniquePath(d.dir, suggestedName)}, nil
}

// ShowMessage prints an informational message
func (d *HeadlessDialogs) ShowMessage(title, message, detail string) error {
	_, err := fmt.Fprintf(d.out, "%s\n%s\n\n%s\n", title, message, detail)
	return err
}

// SystemOpener opens paths with xdg-open, open or explorer
type SystemOpener struct {
	goos  string
	start func(name string, args ...string) error
}

// NewSystemOpener creates an opener for the running operating system
func NewSystemOpener() *SystemOpener {
	return &SystemOpener{
		goos: runtime.GOOS,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// Open launches the file manager on path without waiting for it
func (o *SystemOpener) Open(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	name, args := openCommand(o.goos, abs)
	internal.LogDebug("Opening %s with %s", abs, name)
	if err := o.start(name, args...); err != nil {
		return fmt.Errorf("failed to open %s: %w", abs, err)
	}
	return nil
}

func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "explorer", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}
