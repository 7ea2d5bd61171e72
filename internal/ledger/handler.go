package ledger

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"caption-backend/internal/shared/server/respond"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Handler exposes the runs of one session. Runs are only reachable through
// their session id, which is the session's sole credential.
type Handler struct {
	Store Store
}

// NewHandler constructs a Handler.
func NewHandler(store Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches ledger routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sessions/:sessionId/runs", h.list)
}

func (h *Handler) list(c *gin.Context) {
	limit := defaultLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be a positive integer", nil)
			return
		}
		limit = min(parsed, maxLimit)
	}

	runs, err := h.Store.ListSession(c.Request.Context(), c.Param("sessionId"), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list runs", nil)
		return
	}
	respond.OK(c, gin.H{"runs": runs})
}
