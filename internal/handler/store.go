package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipnote/api/internal/middleware"
	"github.com/clipnote/api/internal/model"
	"github.com/clipnote/api/internal/service"
	"github.com/clipnote/api/internal/storage"
	"github.com/clipnote/api/pkg/response"
)

type StoreHandler struct {
	service   *service.StoreService
	validator *validator.Validate
}

func NewStoreHandler(svc *service.StoreService, v *validator.Validate) *StoreHandler {
	return &StoreHandler{
		service:   svc,
		validator: v,
	}
}

// Save handles POST /save-store
func (h *StoreHandler) Save(c *fiber.Ctx) error {
	var req model.SaveStoreRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	accountID := middleware.GetAccountID(c)
	if err := h.service.Save(c.Context(), accountID, req.Name, req.ID, req.Data); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"message": fmt.Sprintf("Store %q saved successfully", req.Name)})
}

// Load handles POST /load-store
func (h *StoreHandler) Load(c *fiber.Ctx) error {
	var req model.LoadStoreRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	accountID := middleware.GetAccountID(c)
	document, err := h.service.Load(c.Context(), accountID, req.Name, req.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, fmt.Sprintf("Store %q not found", req.Name))
		}
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(document)
}
