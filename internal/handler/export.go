package handler

import (
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipnote/api/internal/middleware"
	"github.com/clipnote/api/internal/model"
	"github.com/clipnote/api/internal/service"
	"github.com/clipnote/api/pkg/response"
)

type ExportHandler struct {
	jobs      *service.JobService
	uploads   *service.UploadService
	validator *validator.Validate
}

func NewExportHandler(jobs *service.JobService, uploads *service.UploadService, v *validator.Validate) *ExportHandler {
	return &ExportHandler{
		jobs:      jobs,
		uploads:   uploads,
		validator: v,
	}
}

// Screenshots handles POST /export-screenshots. An omitted frame list means
// every screenshot in the project.
func (h *ExportHandler) Screenshots(c *fiber.Ctx) error {
	var req model.ScreenshotExportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.jobs.SubmitExportScreenshots(c.Context(), middleware.GetAccountID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, model.JobSubmittedResponse{
		JobID:   job.ID,
		Message: "job submitted",
	})
}

// Project handles POST /export-project.
func (h *ExportHandler) Project(c *fiber.Ctx) error {
	var req model.ProjectExportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.jobs.SubmitExportProject(c.Context(), middleware.GetAccountID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, model.JobSubmittedResponse{
		JobID:   job.ID,
		Message: "job submitted",
	})
}

// Import handles POST /import-project. The request is multipart with a
// "video" part and a "zipfile" part; both are staged into one temp dir the
// import worker consumes and removes.
func (h *ExportHandler) Import(c *fiber.Ctx) error {
	video, err := c.FormFile("video")
	if err != nil {
		return response.ValidationError(c, "Missing video file", nil)
	}
	if video.Header.Get("Content-Type") != "video/mp4" {
		return response.ValidationError(c, "Video must be an mp4 file", nil)
	}

	zipfile, err := c.FormFile("zipfile")
	if err != nil {
		return response.ValidationError(c, "Missing project archive", nil)
	}
	if zipfile.Header.Get("Content-Type") != "application/zip" {
		return response.ValidationError(c, "Project archive must be a zip file", nil)
	}

	dir, err := h.uploads.StageImport()
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	videoPath := filepath.Join(dir, filepath.Base(video.Filename))
	zipPath := filepath.Join(dir, filepath.Base(zipfile.Filename))
	if err := c.SaveFile(video, videoPath); err != nil {
		os.RemoveAll(dir)
		return response.ServiceError(c, err.Error())
	}
	if err := c.SaveFile(zipfile, zipPath); err != nil {
		os.RemoveAll(dir)
		return response.ServiceError(c, err.Error())
	}

	job, err := h.jobs.SubmitImportProject(c.Context(), middleware.GetAccountID(c), videoPath, zipPath)
	if err != nil {
		os.RemoveAll(dir)
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, model.JobSubmittedResponse{
		JobID:   job.ID,
		Message: "job submitted",
	})
}
