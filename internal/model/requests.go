package model

import "encoding/json"

// Auth

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Stores

type SaveStoreRequest struct {
	Name string          `json:"name" validate:"required"`
	ID   *string         `json:"id"`
	Data json.RawMessage `json:"data" validate:"required"`
}

type LoadStoreRequest struct {
	Name string  `json:"name" validate:"required"`
	ID   *string `json:"id"`
}

// Uploads

type UploadResponse struct {
	Location string `json:"location"`
	Name     string `json:"name,omitempty"`
}

// Jobs

type VideoInfoRequest struct {
	Video string `json:"video" validate:"required"`
	ID    string `json:"id" validate:"required"`
}

type ScreenshotRequest struct {
	Video  string `json:"video" validate:"required"`
	Frames []int  `json:"frames" validate:"required,min=1"`
	ID     string `json:"id" validate:"required"`
}

type ScreenshotExportRequest struct {
	Frames []int  `json:"frames"`
	ID     string `json:"id" validate:"required"`
}

type ProjectExportRequest struct {
	ID string `json:"id" validate:"required"`
}

type JobSubmittedResponse struct {
	JobID   int64  `json:"job_id"`
	Message string `json:"message"`
}

type TerminateResponse struct {
	Message string `json:"message"`
}

// Terminate outcomes; exact strings are part of the API contract.
const (
	TerminateOutcomeTerminated = "Terminated"
	TerminateOutcomeNotRunning = "Job not running"
	TerminateOutcomeNotFound   = "Job not found"
)
