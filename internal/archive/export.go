package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/clipnote/api/internal/model"
)

// Packer produces one compressed archive per export request.
type Packer struct {
	stores StoreRepository
	paths  Paths
}

func NewPacker(stores StoreRepository, paths Paths) *Packer {
	return &Packer{stores: stores, paths: paths}
}

// ExportProject packages a project's whole state: both stores verbatim, the
// referenced subtitle asset, and the full screenshot directory. It returns
// the download URL of the finished archive. The archive name carries a
// random token so concurrent exports never collide.
func (p *Packer) ExportProject(ctx context.Context, accountID int64, projectID string) (string, error) {
	undoableStore, err := p.stores.LoadStore(ctx, accountID, model.StoreNameUndoable, projectID)
	if err != nil {
		return "", fmt.Errorf("load undoable store: %w", err)
	}
	mainStore, err := p.stores.LoadStore(ctx, accountID, model.StoreNameMain, projectID)
	if err != nil {
		return "", fmt.Errorf("load main store: %w", err)
	}

	name := fmt.Sprintf("%s.zip", uuid.New())
	err = p.writeArchive(name, func(zw *zip.Writer) error {
		if err := writeEntry(zw, entryUndoable, undoableStore.Document); err != nil {
			return err
		}

		var undoable model.UndoableDocument
		if err := json.Unmarshal(undoableStore.Document, &undoable); err != nil {
			return fmt.Errorf("decode undoable document: %w", err)
		}
		if undoable.Subtitles != nil && *undoable.Subtitles != "" {
			subtitlePath := filepath.Join(p.paths.SubtitleDir, path.Base(*undoable.Subtitles))
			if err := copyFileEntry(zw, entrySubtitles, subtitlePath); err != nil {
				return err
			}
		}

		if err := writeEntry(zw, entryMain, mainStore.Document); err != nil {
			return err
		}

		screenshotDir := p.paths.ProjectScreenshotDir(projectID)
		entries, err := os.ReadDir(screenshotDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("read screenshot dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			source := filepath.Join(screenshotDir, entry.Name())
			if err := copyFileEntry(zw, entryScreenshots+"/"+entry.Name(), source); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return p.archiveURL(name), nil
}

// ExportScreenshots packages the screenshot-typed timelines of a project,
// optionally restricted to a frame subset (nil means all). Exported files
// are renamed to the frame's time position so they order chronologically.
// Timelines whose filtered set is empty get no directory entry at all.
func (p *Packer) ExportScreenshots(ctx context.Context, accountID int64, projectID string, frames []int) (string, error) {
	undoableStore, err := p.stores.LoadStore(ctx, accountID, model.StoreNameUndoable, projectID)
	if err != nil {
		return "", fmt.Errorf("load undoable store: %w", err)
	}
	mainStore, err := p.stores.LoadStore(ctx, accountID, model.StoreNameMain, projectID)
	if err != nil {
		return "", fmt.Errorf("load main store: %w", err)
	}

	var undoable model.UndoableDocument
	if err := json.Unmarshal(undoableStore.Document, &undoable); err != nil {
		return "", fmt.Errorf("decode undoable document: %w", err)
	}
	var main model.MainDocument
	if err := json.Unmarshal(mainStore.Document, &main); err != nil {
		return "", fmt.Errorf("decode main document: %w", err)
	}
	if main.FPS <= 0 {
		return "", fmt.Errorf("main document has no usable frame rate")
	}

	var subset map[int]bool
	if frames != nil {
		subset = make(map[int]bool, len(frames))
		for _, frame := range frames {
			subset[frame] = true
		}
	}

	name := fmt.Sprintf("screenshots-%s.zip", uuid.New())
	frameDir := p.paths.ProjectScreenshotDir(undoable.ID)

	err = p.writeArchive(name, func(zw *zip.Writer) error {
		for _, timeline := range undoable.Timelines {
			if !strings.HasPrefix(timeline.Type, screenshotTimelinePrefix) {
				continue
			}

			var selected []model.TimelineFrame
			for _, frame := range timeline.Data {
				if subset == nil || subset[frame.Frame] {
					selected = append(selected, frame)
				}
			}
			if len(selected) == 0 {
				continue
			}

			dir := timeline.Name + " - " + timeline.ID
			if _, err := zw.Create(dir + "/"); err != nil {
				return fmt.Errorf("create timeline dir: %w", err)
			}
			for _, frame := range selected {
				source := filepath.Join(frameDir, path.Base(frame.Image))
				target := dir + "/" + FormatTimecode(float64(frame.Frame)/main.FPS) + ".jpg"
				if err := copyFileEntry(zw, target, source); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return p.archiveURL(name), nil
}

// writeArchive creates the archive, runs fill, and finalizes it. On any
// failure the partial file is removed so a half-written archive is never
// left looking ready.
func (p *Packer) writeArchive(name string, fill func(*zip.Writer) error) (err error) {
	archivePath := filepath.Join(p.paths.ExportDir, name)
	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(archivePath)
		}
	}()

	zw := zip.NewWriter(file)
	if err = fill(zw); err != nil {
		_ = zw.Close()
		return err
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func (p *Packer) archiveURL(name string) string {
	return p.paths.APIPrefix + path.Join("uploads", "exports", name)
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

func copyFileEntry(zw *zip.Writer, name, source string) error {
	file, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}
	defer file.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}
