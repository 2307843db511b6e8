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

// Unpacker reconstructs a project from a full-project archive under a new
// project identity, bound to a video file supplied alongside the archive.
type Unpacker struct {
	stores StoreRepository
	paths  Paths
}

func NewUnpacker(stores StoreRepository, paths Paths) *Unpacker {
	return &Unpacker{stores: stores, paths: paths}
}

// Unpack imports the archive at zipPath for the given account. The supplied
// video becomes the project's video reference under a fresh unique filename,
// and both stores are upserted with the new project id substituted. On
// failure stores already upserted stay behind; the caller reports the job as
// failed either way.
func (u *Unpacker) Unpack(ctx context.Context, accountID int64, videoPath, zipPath, projectID string) (*model.ImportResult, error) {
	videoName := fmt.Sprintf("%s.mp4", uuid.New())
	if err := moveFile(videoPath, filepath.Join(u.paths.VideoDir, videoName)); err != nil {
		return nil, fmt.Errorf("move video into storage: %w", err)
	}

	scratch, err := os.MkdirTemp("", "import-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := extractArchive(zipPath, scratch); err != nil {
		return nil, err
	}

	mainRaw, err := os.ReadFile(filepath.Join(scratch, entryMain))
	if err != nil {
		return nil, fmt.Errorf("archive is missing %s: %w", entryMain, err)
	}
	var main model.MainDocument
	if err := json.Unmarshal(mainRaw, &main); err != nil {
		return nil, fmt.Errorf("decode %s: %w", entryMain, err)
	}
	main.Video = u.paths.APIPrefix + path.Join("uploads", "videos", videoName)
	main.ID = projectID
	mainDoc, err := json.Marshal(main)
	if err != nil {
		return nil, fmt.Errorf("encode main document: %w", err)
	}
	if err := u.stores.SaveStore(ctx, accountID, model.StoreNameMain, projectID, mainDoc); err != nil {
		return nil, err
	}

	screenshotSrc := filepath.Join(scratch, entryScreenshots)
	if _, err := os.Stat(screenshotSrc); err == nil {
		if err := moveDir(screenshotSrc, u.paths.ProjectScreenshotDir(projectID)); err != nil {
			return nil, fmt.Errorf("move screenshots: %w", err)
		}
	}

	undoableRaw, err := os.ReadFile(filepath.Join(scratch, entryUndoable))
	if err != nil {
		return nil, fmt.Errorf("archive is missing %s: %w", entryUndoable, err)
	}
	var undoable model.UndoableDocument
	if err := json.Unmarshal(undoableRaw, &undoable); err != nil {
		return nil, fmt.Errorf("decode %s: %w", entryUndoable, err)
	}

	subtitleSrc := filepath.Join(scratch, entrySubtitles)
	if _, err := os.Stat(subtitleSrc); err == nil {
		subtitleName := fmt.Sprintf("%s.vtt", uuid.New())
		if err := moveFile(subtitleSrc, filepath.Join(u.paths.SubtitleDir, subtitleName)); err != nil {
			return nil, fmt.Errorf("move subtitles: %w", err)
		}
		subtitleURL := u.paths.APIPrefix + path.Join("uploads", "subtitles", subtitleName)
		undoable.Subtitles = &subtitleURL
	}

	undoable.ID = projectID
	undoableDoc, err := json.Marshal(undoable)
	if err != nil {
		return nil, fmt.Errorf("encode undoable document: %w", err)
	}
	if err := u.stores.SaveStore(ctx, accountID, model.StoreNameUndoable, projectID, undoableDoc); err != nil {
		return nil, err
	}

	// The upload handler staged both files in one temp dir; it is empty now.
	_ = os.RemoveAll(filepath.Dir(zipPath))

	return &model.ImportResult{ID: projectID, Name: filepath.Base(zipPath)}, nil
}

// extractArchive unpacks a zip into dest, refusing entries that escape it.
func extractArchive(zipPath, dest string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		target := filepath.Join(dest, entry.Name)
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes extraction dir: %s", entry.Name)
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", entry.Name, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", entry.Name, err)
		}
		if err := extractFile(entry, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(entry *zip.File, target string) error {
	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return out.Close()
}
