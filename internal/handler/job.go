package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipnote/api/internal/middleware"
	"github.com/clipnote/api/internal/model"
	"github.com/clipnote/api/internal/service"
	"github.com/clipnote/api/internal/storage"
	"github.com/clipnote/api/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewJobHandler(svc *service.JobService, v *validator.Validate) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
	}
}

// VideoInfo handles POST /get-video-info
func (h *JobHandler) VideoInfo(c *fiber.Ctx) error {
	var req model.VideoInfoRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	job, err := h.service.SubmitVideoInfo(c.Context(), middleware.GetAccountID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return h.submitted(c, job)
}

// ShotDetection handles POST /shotboundary-detection
func (h *JobHandler) ShotDetection(c *fiber.Ctx) error {
	var req model.VideoInfoRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	job, err := h.service.SubmitShotDetection(c.Context(), middleware.GetAccountID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return h.submitted(c, job)
}

// Screenshots handles POST /screenshots-generation
func (h *JobHandler) Screenshots(c *fiber.Ctx) error {
	var req model.ScreenshotRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	job, err := h.service.SubmitScreenshots(c.Context(), middleware.GetAccountID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return h.submitted(c, job)
}

// List handles GET /get-jobs/:projectid? and, without a project id, returns
// all of the account's jobs.
func (h *JobHandler) List(c *fiber.Ctx) error {
	projectID := c.Params("projectid")

	jobs, err := h.service.ListJobs(c.Context(), middleware.GetAccountID(c), projectID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	return response.OK(c, jobs)
}

// Result handles GET /get-result/:jobid
func (h *JobHandler) Result(c *fiber.Ctx) error {
	jobID, err := strconv.ParseInt(c.Params("jobid"), 10, 64)
	if err != nil {
		return response.ValidationError(c, "Invalid job id", nil)
	}

	result, err := h.service.GetResult(c.Context(), middleware.GetAccountID(c), jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "Result not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}

// Terminate handles GET /terminate-job/:jobid
func (h *JobHandler) Terminate(c *fiber.Ctx) error {
	jobID, err := strconv.ParseInt(c.Params("jobid"), 10, 64)
	if err != nil {
		return response.ValidationError(c, "Invalid job id", nil)
	}

	outcome, err := h.service.Terminate(c.Context(), middleware.GetAccountID(c), jobID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, model.TerminateResponse{Message: outcome})
}

func (h *JobHandler) parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	return nil
}

func (h *JobHandler) submitted(c *fiber.Ctx, job *model.Job) error {
	return response.Accepted(c, model.JobSubmittedResponse{
		JobID:   job.ID,
		Message: "job submitted",
	})
}
