package sessions

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"caption-backend/internal/export"
	"caption-backend/internal/intake"
	"caption-backend/internal/shared/metrics"
	"caption-backend/internal/shared/server/middleware"
	"caption-backend/internal/shared/server/respond"
	"caption-backend/internal/shared/telemetry"
	"caption-backend/internal/videos"
)

// MaxUploadBytes caps the whole upload stream. Oversized files inside it are
// skipped one by one, so the cap only stops unbounded requests.
const MaxUploadBytes = 1 << 30

// Handler wires session HTTP routes to the Manager.
type Handler struct {
	Manager *Manager
	Intake  *intake.Admitter
	Now     func() time.Time
	// MaxUploadBytes overrides the request cap when positive.
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(mgr *Manager, admitter *intake.Admitter) *Handler {
	return &Handler{Manager: mgr, Intake: admitter}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.create)
	rg.GET("/sessions/:sessionId", h.state)
	rg.DELETE("/sessions/:sessionId", h.end)
	rg.POST("/sessions/:sessionId/videos", h.upload)
	rg.DELETE("/sessions/:sessionId/videos/:videoId", h.removeVideo)
	rg.PUT("/sessions/:sessionId/selection", h.selectVideo)
	rg.PUT("/sessions/:sessionId/settings", h.updateSettings)
	rg.GET("/sessions/:sessionId/export/pdf", h.exportPDF)
	rg.GET("/sessions/:sessionId/export/docx", h.exportDOCX)
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}

	sess, err := h.Manager.Create(CreateOptions{
		CaptionLength: req.MaxLength,
		Credential:    middleware.CredentialFromContext(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, videos.ErrInvalidCaptionLength):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrTooManySessions):
			respond.Error(c, http.StatusServiceUnavailable, "capacity_exceeded", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create session", nil)
		}
		return
	}
	c.Set("sessionId", sess.ID)
	respond.JSON(c, http.StatusCreated, createResponse{SessionID: sess.ID, MaxLength: sess.Engine.Snapshot().CaptionLength})
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	sess, err := h.Manager.Get(c.Param("sessionId"))
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return nil, false
	}
	return sess, true
}

func (h *Handler) state(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	respond.OK(c, toState(sess.ID, sess.Engine.Snapshot()))
}

func (h *Handler) end(c *gin.Context) {
	err := h.Manager.End(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
			return
		}
		// The session is gone either way; cleanup problems are only logged.
		telemetry.Warn("session.end_cleanup_failed", map[string]any{"session_id": c.Param("sessionId"), "err": err})
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) upload(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = MaxUploadBytes
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	reader, err := c.Request.MultipartReader()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form with files is required", nil)
		return
	}
	candidates, cleanup, err := spoolParts(reader, h.fileLimit(), h.itemLimit())
	defer cleanup()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "upload exceeds the allowed size", nil)
			return
		}
		telemetry.Warn("upload.read_failed", map[string]any{"session_id": sess.ID, "err": err})
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	if len(candidates) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "files are required", nil)
		return
	}

	sess.uploadMu.Lock()
	defer sess.uploadMu.Unlock()

	ctx := c.Request.Context()
	batch, err := h.Intake.Admit(ctx, sess.ID, sess.Engine.Len(), candidates)
	if err != nil {
		telemetry.Error("intake.failed", map[string]any{"session_id": sess.ID, "err": err})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store videos", nil)
		return
	}
	if batch.Warning != "" {
		c.Set("intakeWarning", batch.Warning)
	}
	if len(batch.Items) == 0 {
		respond.Error(c, http.StatusUnprocessableEntity, "intake_rejected", batch.Warning, gin.H{"warning": batch.Warning})
		return
	}

	if err := sess.Engine.Enqueue(batch.Items...); err != nil {
		h.releaseAll(ctx, batch.Items)
		switch {
		case errors.Is(err, videos.ErrQueueFull):
			c.Set("intakeWarning", intake.WarnTooMany)
			respond.Error(c, http.StatusUnprocessableEntity, "intake_rejected", intake.WarnTooMany, gin.H{"warning": intake.WarnTooMany})
		case errors.Is(err, videos.ErrClosed):
			respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to queue videos", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, uploadResponse{Items: batch.Items, Warning: optionalString(batch.Warning)})
}

func (h *Handler) fileLimit() int64 {
	if h.Intake != nil && h.Intake.MaxFileSize > 0 {
		return h.Intake.MaxFileSize
	}
	return videos.MaxFileSize
}

func (h *Handler) itemLimit() int {
	if h.Intake != nil && h.Intake.MaxItems > 0 {
		return h.Intake.MaxItems
	}
	return videos.MaxItems
}

// spoolParts reads the "files" parts in order. Each file up to fileLimit is
// copied to a temp file; a larger one is drained and reported with its real
// size and no body so intake skips it. Past maxItems files nothing more is
// kept, since intake rejects such a batch whole.
func spoolParts(reader *multipart.Reader, fileLimit int64, maxItems int) ([]intake.Candidate, func(), error) {
	var spooled []*os.File
	cleanup := func() {
		for _, f := range spooled {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}

	var candidates []intake.Candidate
	for {
		p, err := reader.NextPart()
		if err == io.EOF {
			return candidates, cleanup, nil
		}
		if err != nil {
			return nil, cleanup, err
		}
		if p.FormName() != "files" || p.FileName() == "" {
			if _, err := io.Copy(io.Discard, p); err != nil {
				return nil, cleanup, err
			}
			continue
		}

		cand := intake.Candidate{
			FileName:    p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
			Body:        http.NoBody,
		}
		if len(candidates) >= maxItems {
			n, err := io.Copy(io.Discard, p)
			if err != nil {
				return nil, cleanup, err
			}
			cand.SizeBytes = n
			candidates = append(candidates, cand)
			continue
		}

		f, err := os.CreateTemp("", "caption-upload-*")
		if err != nil {
			return nil, cleanup, err
		}
		spooled = append(spooled, f)
		n, err := io.Copy(f, io.LimitReader(p, fileLimit+1))
		if err != nil {
			return nil, cleanup, err
		}
		if n > fileLimit {
			rest, err := io.Copy(io.Discard, p)
			if err != nil {
				return nil, cleanup, err
			}
			cand.SizeBytes = n + rest
			candidates = append(candidates, cand)
			continue
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, cleanup, err
		}
		cand.SizeBytes = n
		cand.Body = f
		candidates = append(candidates, cand)
	}
}

func (h *Handler) releaseAll(ctx context.Context, items []videos.Item) {
	for _, it := range items {
		if err := h.Intake.Release(ctx, it); err != nil {
			telemetry.Warn("video.release_failed", map[string]any{"video_id": it.ID, "err": err})
		}
	}
}

func (h *Handler) removeVideo(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	videoID := c.Param("videoId")
	c.Set("videoId", videoID)
	if err := sess.Engine.Remove(c.Request.Context(), videoID); err != nil {
		if errors.Is(err, videos.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "video not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to remove video", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) selectVideo(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	id := ""
	if req.VideoID != nil {
		id = *req.VideoID
		c.Set("videoId", id)
	}
	if err := sess.Engine.Select(id); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "video not found", nil)
		return
	}
	respond.OK(c, toState(sess.ID, sess.Engine.Snapshot()))
}

func (h *Handler) updateSettings(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "maxLength must be null or a positive integer", nil)
		return
	}
	if err := sess.Engine.SetCaptionLength(req.MaxLength); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	respond.OK(c, toState(sess.ID, sess.Engine.Snapshot()))
}

func (h *Handler) exportPDF(c *gin.Context) {
	h.export(c, export.FormatPDF, export.PDF, export.PDFFileName, export.PDFContentType)
}

func (h *Handler) exportDOCX(c *gin.Context) {
	h.export(c, export.FormatDOCX, export.DOCX, export.DOCXFileName, export.DOCXContentType)
}

type renderFunc func([]videos.Item, export.Options) ([]byte, error)

func (h *Handler) export(c *gin.Context, format string, render renderFunc, fileName, contentType string) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	data, err := render(sess.Engine.Snapshot().Items, export.Options{Now: h.Now})
	if err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			respond.Error(c, http.StatusConflict, "nothing_to_export", export.NothingToExportNotice, nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate report", nil)
		return
	}
	metrics.IncExport(format)
	respond.Attachment(c, fileName, contentType, data)
}
