package preview

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"caption-backend/internal/shared/server/respond"
	"caption-backend/internal/shared/storage/object"
	"caption-backend/internal/shared/telemetry"
)

const presignTTL = 15 * time.Minute

// Handler serves preview bytes for live tokens.
type Handler struct {
	Registry *Registry
	Store    object.ObjectStore
}

// NewHandler constructs a Handler.
func NewHandler(reg *Registry, store object.ObjectStore) *Handler {
	return &Handler{Registry: reg, Store: store}
}

// RegisterRoutes attaches preview routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/previews/:token", h.serve)
}

func (h *Handler) serve(c *gin.Context) {
	entry, err := h.Registry.Resolve(c.Param("token"))
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "preview not found", nil)
		return
	}

	if p, ok := h.Store.(object.Presigner); ok {
		url, err := p.PresignGet(c.Request.Context(), entry.StorageKey, entry.ContentType, presignTTL)
		if err == nil {
			c.Redirect(http.StatusFound, url)
			return
		}
		telemetry.Warn("preview.presign_failed", map[string]any{"err": err})
	}

	body, err := h.Store.Open(c.Request.Context(), entry.StorageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "preview not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open preview", nil)
		return
	}
	defer body.Close()

	c.Header("Content-Type", entry.ContentType)
	c.Header("Cache-Control", "private, max-age=300")
	if rs, ok := body.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, "", entry.AcquiredAt, rs)
		return
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		telemetry.Warn("preview.stream_failed", map[string]any{"err": err})
	}
}
