package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/wishaday/internal/config"
	"github.com/hpungsan/wishaday/internal/errors"
	"github.com/hpungsan/wishaday/internal/lifecycle"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	manager *lifecycle.Manager
	cfg     *config.Config
	now     func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(manager *lifecycle.Manager, cfg *config.Config) *Handlers {
	return &Handlers{manager: manager, cfg: cfg, now: time.Now}
}

// Request types for each tool

// CreateRequest represents the arguments for wish_create.
type CreateRequest struct {
	Message          string  `json:"message"`
	Title            *string `json:"title,omitempty"`
	Theme            string  `json:"theme,omitempty"`
	ExpiresAt        string  `json:"expires_at,omitempty"`
	ExpiresInMinutes *int    `json:"expires_in_minutes,omitempty"`
	MaxViews         *int    `json:"max_views,omitempty"`
	Origin           string  `json:"origin"`
}

// SlugRequest represents the arguments for tools addressed by slug only.
type SlugRequest struct {
	Slug string `json:"slug"`
}

// DeleteRequest represents the arguments for wish_delete.
type DeleteRequest struct {
	Slug        string `json:"slug"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// AttachImageRequest represents the arguments for wish_attach_image.
type AttachImageRequest struct {
	Slug       string `json:"slug"`
	Filename   string `json:"filename,omitempty"`
	DataBase64 string `json:"data_base64"`
}

// DetachImageRequest represents the arguments for wish_detach_image.
type DetachImageRequest struct {
	Slug    string `json:"slug"`
	ImageID string `json:"image_id"`
}

// Handler implementations

// HandleCreate handles the wish_create tool call.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	expiresAt, err := resolveExpiry(input.ExpiresAt, input.ExpiresInMinutes, h.now())
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.manager.Create(ctx, lifecycle.CreateInput{
		Title:     input.Title,
		Message:   input.Message,
		Theme:     input.Theme,
		ExpiresAt: expiresAt,
		MaxViews:  input.MaxViews,
		Origin:    input.Origin,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleView handles the wish_view tool call.
func (h *Handlers) HandleView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SlugRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.manager.View(ctx, input.Slug)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the wish_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	requestedBy := input.RequestedBy
	if requestedBy == "" {
		requestedBy = "mcp"
	}

	result, err := h.manager.Delete(ctx, lifecycle.DeleteInput{
		Slug:        input.Slug,
		RequestedBy: requestedBy,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStatus handles the wish_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SlugRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.manager.Status(ctx, input.Slug)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImages handles the wish_images tool call.
func (h *Handlers) HandleImages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SlugRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.manager.ListImages(ctx, input.Slug)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAttachImage handles the wish_attach_image tool call.
func (h *Handlers) HandleAttachImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AttachImageRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	data, err := base64.StdEncoding.DecodeString(input.DataBase64)
	if err != nil {
		return errorResult(errors.NewInvalidRequest("data_base64 is not valid base64")), nil
	}

	result, err := h.manager.AttachImage(ctx, lifecycle.AttachImageInput{
		Slug:     input.Slug,
		Filename: input.Filename,
		Data:     data,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDetachImage handles the wish_detach_image tool call.
func (h *Handlers) HandleDetachImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DetachImageRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.manager.DetachImage(ctx, lifecycle.DetachImageInput{
		Slug:    input.Slug,
		ImageID: input.ImageID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// resolveExpiry turns the absolute or relative expiry arguments into a time.
// An absolute expiry wins when both are given.
func resolveExpiry(absolute string, inMinutes *int, now time.Time) (*time.Time, error) {
	if absolute != "" {
		t, err := time.Parse(time.RFC3339, absolute)
		if err != nil {
			return nil, errors.NewInvalidRequest("expires_at must be RFC 3339, e.g. 2026-01-02T15:04:05Z")
		}
		return &t, nil
	}
	if inMinutes != nil {
		if *inMinutes <= 0 {
			return nil, errors.NewInvalidRequest("expires_in_minutes must be positive")
		}
		t := now.Add(time.Duration(*inMinutes) * time.Minute)
		return &t, nil
	}
	return nil, nil
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if wErr, ok := errors.As(err); ok {
		message := wErr.Message
		// Keep context added by callers that wrapped the error
		if prefix := strings.TrimSuffix(err.Error(), wErr.Error()); prefix != err.Error() {
			message = prefix + message
		}
		if wErr.Code == errors.ErrInternal {
			message = "an internal error occurred"
		}

		errorObj := map[string]any{
			"code":    wErr.Code,
			"message": message,
			"status":  wErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if wErr.Code != errors.ErrInternal && wErr.Details != nil {
			errorObj["details"] = wErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result with JSON data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
