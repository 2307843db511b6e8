package service

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/asticode/go-astisub"
	"github.com/google/uuid"

	"github.com/clipnote/api/internal/config"
)

// UploadService places uploaded assets into permanent storage under unique
// filenames and converts subtitles to the WebVTT the front end consumes.
type UploadService struct {
	cfg *config.Config
}

func NewUploadService(cfg *config.Config) *UploadService {
	return &UploadService{cfg: cfg}
}

// VideoTarget reserves a destination for an uploaded mp4 and returns the
// on-disk path plus the URL clients reference it by.
func (s *UploadService) VideoTarget() (string, string) {
	name := fmt.Sprintf("%s.mp4", uuid.New())
	return filepath.Join(s.cfg.Storage.VideoDir, name),
		s.cfg.Server.APIPrefix + path.Join("uploads", "videos", name)
}

// StoreSubtitle converts an uploaded SRT file into permanent VTT storage and
// returns the URL of the converted asset. The source file is removed.
func (s *UploadService) StoreSubtitle(srtPath string) (string, error) {
	subs, err := astisub.OpenFile(srtPath)
	if err != nil {
		return "", fmt.Errorf("parse subtitles: %w", err)
	}

	name := fmt.Sprintf("%s.vtt", uuid.New())
	vttPath := filepath.Join(s.cfg.Storage.SubtitleDir, name)
	if err := subs.Write(vttPath); err != nil {
		return "", fmt.Errorf("write vtt: %w", err)
	}
	if err := os.Remove(srtPath); err != nil {
		return "", fmt.Errorf("remove srt upload: %w", err)
	}

	return s.cfg.Server.APIPrefix + path.Join("uploads", "subtitles", name), nil
}

// StageImport creates a temp dir holding the uploaded video and archive so
// an import worker can take ownership of both files.
func (s *UploadService) StageImport() (string, error) {
	dir, err := os.MkdirTemp("", "import-upload-*")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return dir, nil
}
