package processing

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/eleven-am/verse-backend/internal/classifier"
	"github.com/eleven-am/verse-backend/internal/shared"
	"github.com/labstack/echo/v4"
)

const (
	DefaultMaxUploadBytes = 25 * 1024 * 1024
	successMessage        = "Audio processed successfully."
	multipartOverhead     = 1024 * 1024
)

// uploadFields are tried in order; audioFile is what the bundled page sends.
var uploadFields = []string{"audioFile", "file"}

type Config struct {
	MaxUploadBytes    int64
	IncludeTranscript bool
}

type Handler struct {
	pipeline *Pipeline
	cfg      Config
	logger   *slog.Logger
}

func NewHandler(pipeline *Pipeline, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger.With("handler", "processing"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.POST("/process-audio", h.HandleProcessAudio, mw...)
	g.GET("/ws", h.HandleWebsocket, mw...)
}

type ProcessResponse struct {
	Message    string            `json:"message"`
	Transcript string            `json:"transcript,omitempty"`
	Result     classifier.Result `json:"result"`
}

// HandleProcessAudio accepts a multipart upload and answers with the canned
// response chosen for its transcript.
func (h *Handler) HandleProcessAudio(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.cfg.MaxUploadBytes+multipartOverhead)

	file, err := h.formFile(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return h.tooLarge()
		}
		return shared.BadRequest("missing_file", "No file uploaded.")
	}
	if file.Size > h.cfg.MaxUploadBytes {
		return h.tooLarge()
	}

	src, err := file.Open()
	if err != nil {
		return shared.InternalError("file_error", "Failed to open file")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.cfg.MaxUploadBytes+1))
	if err != nil {
		return shared.InternalError("file_error", "Failed to read file")
	}
	if int64(len(data)) > h.cfg.MaxUploadBytes {
		return h.tooLarge()
	}

	requestID := requestIDFor(c)
	out, err := h.pipeline.Process(req.Context(), requestID, EntryHTTP, data, formatOf(file.Filename))
	if err != nil {
		return shared.ProcessingFailed()
	}

	return c.JSON(http.StatusOK, h.response(out))
}

func (h *Handler) response(out Outcome) ProcessResponse {
	resp := ProcessResponse{Message: successMessage, Result: out.Result}
	if h.cfg.IncludeTranscript {
		resp.Transcript = out.Transcript.Text
	}
	return resp
}

func (h *Handler) formFile(c echo.Context) (*multipart.FileHeader, error) {
	var firstErr error
	for _, field := range uploadFields {
		file, err := c.FormFile(field)
		if err == nil {
			return file, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func (h *Handler) tooLarge() error {
	return shared.PayloadTooLarge("file_too_large", "The uploaded file is too large.")
}

// formatOf derives the container hint from the upload's file name.
func formatOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func requestIDFor(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	id := shared.NewID("req_")
	c.Response().Header().Set(echo.HeaderXRequestID, id)
	return id
}
