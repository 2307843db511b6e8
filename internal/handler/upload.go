package handler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/clipnote/api/internal/service"
	"github.com/clipnote/api/pkg/response"
)

type UploadHandler struct {
	service *service.UploadService
}

func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// Video handles POST /upload-video
func (h *UploadHandler) Video(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Missing file upload", nil)
	}
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "video/mp4") {
		return response.ValidationError(c, "Invalid file type. Please upload a mp4 video.", nil)
	}

	target, location := h.service.VideoTarget()
	if err := c.SaveFile(file, target); err != nil {
		return response.ServiceError(c, "Error uploading video: "+err.Error())
	}

	return response.OK(c, fiber.Map{
		"location": location,
		"name":     file.Filename,
	})
}

// Subtitles handles POST /upload-subtitles
func (h *UploadHandler) Subtitles(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Missing file upload", nil)
	}
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "application/x-subrip") {
		return response.ValidationError(c, "Invalid file type. Please upload a srt subtitle.", nil)
	}

	staging, err := os.MkdirTemp("", "subtitle-*")
	if err != nil {
		return response.ServiceError(c, "Error uploading subtitles: "+err.Error())
	}
	defer os.RemoveAll(staging)

	srtPath := filepath.Join(staging, "upload.srt")
	if err := c.SaveFile(file, srtPath); err != nil {
		return response.ServiceError(c, "Error uploading subtitles: "+err.Error())
	}

	location, err := h.service.StoreSubtitle(srtPath)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"location": location})
}
