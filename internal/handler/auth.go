package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipnote/api/internal/middleware"
	"github.com/clipnote/api/internal/model"
	"github.com/clipnote/api/internal/service"
	"github.com/clipnote/api/pkg/response"
)

type AuthHandler struct {
	service   *service.AuthService
	auth      *middleware.AuthMiddleware
	validator *validator.Validate
}

func NewAuthHandler(svc *service.AuthService, auth *middleware.AuthMiddleware, v *validator.Validate) *AuthHandler {
	return &AuthHandler{
		service:   svc,
		auth:      auth,
		validator: v,
	}
}

// Signup handles POST /signup
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req model.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.service.Signup(c.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return response.ValidationError(c, "Email already registered", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, fiber.Map{"message": "Account created successfully"})
}

// Login handles POST /login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req model.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	account, err := h.service.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return response.Unauthorized(c, "Incorrect username or password")
		}
		return response.ServiceError(c, err.Error())
	}

	token, err := h.auth.GenerateToken(account.ID, account.Email)
	if err != nil {
		return response.ServiceError(c, "Failed to issue token")
	}

	return response.OK(c, model.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// RenewToken handles GET /renew-token
func (h *AuthHandler) RenewToken(c *fiber.Ctx) error {
	accountID := middleware.GetAccountID(c)
	email := middleware.GetEmail(c)

	token, err := h.auth.GenerateToken(accountID, email)
	if err != nil {
		return response.ServiceError(c, "Failed to issue token")
	}

	return response.OK(c, model.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
