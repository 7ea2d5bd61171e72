package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"caption-backend/internal/ledger"
	"caption-backend/internal/preview"
	"caption-backend/internal/services/health"
	"caption-backend/internal/sessions"
	"caption-backend/internal/shared/config"
	"caption-backend/internal/shared/metrics"
	"caption-backend/internal/shared/server/middleware"
)

// Rate limit groups.
const (
	GroupDefault = "DEFAULT"
	GroupUpload  = "UPLOAD"
	GroupExport  = "EXPORT"
)

// DefaultRateLimits keeps uploads and report generation well below the general API budget.
var DefaultRateLimits = map[string]middleware.RateLimitRule{
	GroupDefault: {Rate: 10, Burst: 40},
	GroupUpload:  {Rate: 0.5, Burst: 5},
	GroupExport:  {Rate: 1, Burst: 5},
}

// RouterDeps carries the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config         config.Config
	SessionHandler *sessions.Handler
	PreviewHandler *preview.Handler
	LedgerHandler  *ledger.Handler
	Health         *health.Service
	RateLimits     map[string]middleware.RateLimitRule
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	if deps.Health != nil {
		r.GET("/health", deps.Health.Handle)
	}
	r.GET("/metrics", metrics.Handler())

	limits := deps.RateLimits
	if limits == nil {
		limits = DefaultRateLimits
	}

	api := r.Group("/api/v1")
	if deps.Health != nil {
		api.GET("/health", deps.Health.Handle)
	}
	api.Use(
		middleware.Session(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        limits,
			DefaultGroup: GroupDefault,
			GroupFor:     rateLimitGroup,
		}),
	)

	if deps.SessionHandler != nil {
		deps.SessionHandler.RegisterRoutes(api)
	}
	if deps.PreviewHandler != nil {
		deps.PreviewHandler.RegisterRoutes(api)
	}
	if deps.LedgerHandler != nil {
		deps.LedgerHandler.RegisterRoutes(api)
	}
	return r
}

func rateLimitGroup(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case c.Request.Method == "POST" && strings.HasSuffix(path, "/videos"):
		return GroupUpload
	case strings.Contains(path, "/export/"):
		return GroupExport
	default:
		return GroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
