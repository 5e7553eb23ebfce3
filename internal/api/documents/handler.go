package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"creator-coach/config"
	"creator-coach/internal/database/model"
	"creator-coach/internal/repository"
	"creator-coach/internal/services/ingest"
	"creator-coach/pkg/apperror"
	"creator-coach/pkg/apperror/status"
	"creator-coach/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

// Ingester runs the ingestion pipeline for one upload.
type Ingester interface {
	Ingest(ctx context.Context, up ingest.Upload) (ingest.Result, error)
}

type Handler struct {
	ingester     Ingester
	store        repository.Store
	index        ingest.VectorIndex
	maxFileBytes int64
	timeout      time.Duration
}

type Config struct {
	MaxFileBytes int64
	// Timeout bounds one ingestion; 0 leaves only the request deadline.
	Timeout time.Duration
}

func ConfigFromSettings() Config {
	return Config{
		MaxFileBytes: config.Cfg.Ingest.MaxFileBytes,
		Timeout:      time.Duration(config.Cfg.Ingest.TimeoutSeconds) * time.Second,
	}
}

// NewHandler wires the document routes. index may be nil.
func NewHandler(ingester Ingester, store repository.Store, index ingest.VectorIndex, cfg Config) *Handler {
	return &Handler{
		ingester:     ingester,
		store:        store,
		index:        index,
		maxFileBytes: cfg.MaxFileBytes,
		timeout:      cfg.Timeout,
	}
}

type listResponse struct {
	Documents []model.Document `json:"documents"`
}

// HandleUpload ingests a multipart upload with fields file, title and optional source.
func (h *Handler) HandleUpload(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	fh, err := c.FormFile("file")
	if err != nil || fh == nil {
		return apperror.BadRequest(config.ModuleDocuments, c, status.MissingParams, "file is required")
	}
	if h.maxFileBytes > 0 && fh.Size > h.maxFileBytes {
		return apperror.Coded(config.ModuleDocuments, c, &ingest.Error{
			Kind:    ingest.KindFileTooLarge,
			Message: "file exceeds the upload size limit",
		})
	}

	file, err := fh.Open()
	if err != nil {
		return apperror.BadRequest(config.ModuleDocuments, c, status.InvalidRequestBody, "cannot open file")
	}
	defer file.Close()

	var r io.Reader = file
	if h.maxFileBytes > 0 {
		// one extra byte lets the pipeline see that the limit was passed
		r = io.LimitReader(file, h.maxFileBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return apperror.BadRequest(config.ModuleDocuments, c, status.InvalidRequestBody, "cannot read file")
	}

	up := ingest.Upload{
		Data:      data,
		FileName:  fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Title:     c.FormValue("title"),
	}
	if source := c.FormValue("source"); source != "" {
		up.Source = &source
	}

	ctx := c.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	res, err := h.ingester.Ingest(ctx, up)
	if err != nil {
		return apperror.Coded(config.ModuleDocuments, c, err)
	}

	return apperror.Success(config.ModuleDocuments, c, apperror.FiberSuccessMessage{
		Code:       status.Created,
		Message:    "document ingested",
		TrackingID: trackingID,
		Data:       res,
	})
}

func (h *Handler) HandleList(c fiber.Ctx) error {
	docs, err := h.store.ListDocuments(c.Context())
	if err != nil {
		return apperror.InternalError(config.ModuleDocuments, c, err)
	}
	return apperror.Success(config.ModuleDocuments, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "documents listed",
		TrackingID: c.Get("X-Request-ID"),
		Data:       listResponse{Documents: docs},
	})
}

// HandleDelete removes a document with its chunks, and its rows in the vector index when one is wired.
func (h *Handler) HandleDelete(c fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return apperror.BadRequest(config.ModuleDocuments, c, status.MissingParams, "id is required")
	}

	err := h.store.DeleteDocument(c.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.Coded(config.ModuleDocuments, c, status.New(status.NotFound, errors.New("document not found")))
	}
	if err != nil {
		return apperror.InternalError(config.ModuleDocuments, c, err)
	}
	if h.index != nil {
		if err := h.index.Replace(c.Context(), id, nil); err != nil {
			logger.Module(config.ModuleDocuments).WithFields(map[string]interface{}{
				"doc_id": id,
				"error":  err.Error(),
			}).Warn("vector index cleanup failed")
		}
	}

	return apperror.Success(config.ModuleDocuments, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "document deleted",
		TrackingID: c.Get("X-Request-ID"),
		Data:       fiber.Map{"id": id},
	})
}
