// Package archive packages a project's stores and filesystem assets into a
// zip archive and reconstructs a project from one.
//
// Entry layout is a contract shared by export and import and must not drift:
//
//	main.json          canonical project document, verbatim store bytes
//	undoable.json      editable/timeline document, verbatim store bytes
//	subtitles.vtt      only when the undoable document references subtitles
//	screenshots/<f>    full-project export only, flat copy of the asset dir
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipnote/api/internal/model"
)

// Entry names inside the archive.
const (
	entryMain        = "main.json"
	entryUndoable    = "undoable.json"
	entrySubtitles   = "subtitles.vtt"
	entryScreenshots = "screenshots"
)

// screenshotTimelinePrefix tags timelines that hold screenshots.
const screenshotTimelinePrefix = "screenshots"

// StoreRepository is the slice of persistence the packer and unpacker need.
type StoreRepository interface {
	LoadStore(ctx context.Context, accountID int64, name, projectID string) (*model.Store, error)
	SaveStore(ctx context.Context, accountID int64, name, projectID string, document json.RawMessage) error
}

// Paths locates the asset directories shared with the upload endpoints.
type Paths struct {
	VideoDir      string
	SubtitleDir   string
	ScreenshotDir string
	ExportDir     string
	APIPrefix     string
}

// ProjectScreenshotDir returns the screenshot asset directory for a project.
func (p Paths) ProjectScreenshotDir(projectID string) string {
	return filepath.Join(p.ScreenshotDir, projectID)
}

// FormatTimecode renders a position in seconds as HH:MM:SS,ff with a comma
// decimal separator, subtitle style. Exported screenshot filenames use it so
// they sort chronologically.
func FormatTimecode(seconds float64) string {
	hours := int(seconds / 3600)
	minutes := int(math.Mod(seconds, 3600) / 60)
	secs := math.Mod(seconds, 60)
	formatted := fmt.Sprintf("%02d:%02d:%05.2f", hours, minutes, secs)
	return strings.Replace(formatted, ".", ",", 1)
}

// moveFile renames a file, falling back to copy+remove across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// moveDir moves a directory tree, falling back to per-file copies.
func moveDir(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := moveDir(from, to); err != nil {
				return err
			}
			continue
		}
		if err := moveFile(from, to); err != nil {
			return err
		}
	}
	return os.RemoveAll(src)
}
