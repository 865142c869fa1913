// Package server provides the HTTP surface: routing, middleware and the
// single translation point from domain errors to response envelopes.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"vlmodel/internal/core"
	"vlmodel/internal/files"
)

// ChatService is the chat completion contract consumed by the handlers.
type ChatService interface {
	ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error)
	ListModels() *core.ModelList
}

// FileService is the file lifecycle contract consumed by the handlers.
type FileService interface {
	Upload(ctx context.Context, r io.Reader, filename, contentType, purpose string) (*files.Record, error)
	GetMetadata(ctx context.Context, id string) (*files.Record, error)
	GetContent(ctx context.Context, id string) (io.ReadCloser, *files.Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) error
}

// Handler holds the HTTP handlers
type Handler struct {
	chat  ChatService
	files FileService
}

// NewHandler creates a new handler over the given services
func NewHandler(chat ChatService, files FileService) *Handler {
	return &Handler{chat: chat, files: files}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListModels handles GET /v1/models
func (h *Handler) ListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, h.chat.ListModels())
}

// ChatCompletion handles POST /v1/chat/completions
func (h *Handler) ChatCompletion(c echo.Context) error {
	var req core.ChatRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}

	resp, err := h.chat.ChatCompletion(c.Request().Context(), &req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// UploadFile handles POST /v1/files (multipart: file + purpose)
func (h *Handler) UploadFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return handleError(c, core.NewInvalidRequestError("file field is required", err))
	}
	purpose := c.FormValue("purpose")

	src, err := fh.Open()
	if err != nil {
		return handleError(c, core.NewInternalError(err))
	}
	defer src.Close()

	rec, err := h.files.Upload(c.Request().Context(), src, fh.Filename, fh.Header.Get("Content-Type"), purpose)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, fileObject(rec))
}

// ListFiles handles GET /v1/files, which is intentionally disabled.
func (h *Handler) ListFiles(c echo.Context) error {
	return handleError(c, h.files.List(c.Request().Context()))
}

// RetrieveFile handles GET /v1/files/:id
func (h *Handler) RetrieveFile(c echo.Context) error {
	rec, err := h.files.GetMetadata(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, fileObject(rec))
}

// DeleteFile handles DELETE /v1/files/:id
func (h *Handler) DeleteFile(c echo.Context) error {
	id := c.Param("id")
	if err := h.files.Delete(c.Request().Context(), id); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, core.FileDeleteResponse{ID: id, Object: "file", Deleted: true})
}

// RetrieveFileContent handles GET /v1/files/:id/content
func (h *Handler) RetrieveFileContent(c echo.Context) error {
	rc, rec, err := h.files.GetContent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", rec.Filename))
	contentType := rec.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, contentType, rc)
}

func fileObject(rec *files.Record) core.FileObject {
	return core.FileObject{
		ID:        rec.ID,
		Object:    "file",
		Bytes:     rec.Bytes,
		CreatedAt: rec.CreatedAt.Unix(),
		Filename:  rec.Filename,
		Purpose:   rec.Purpose,
	}
}

// handleError converts domain errors to the documented response envelopes
func handleError(c echo.Context, err error) error {
	var se *core.ServeError
	if errors.As(err, &se) {
		if se.Err != nil {
			slog.Debug("request failed", "type", se.Type, "error", se.Err)
		}
		return c.JSON(se.HTTPStatusCode(), se.Envelope())
	}

	slog.Error("unexpected handler error", "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]any{
		"object":  "error",
		"message": "an unexpected error occurred",
		"type":    string(core.ErrorTypeInternal),
		"param":   nil,
		"code":    http.StatusInternalServerError,
	})
}
