package health

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"caption-backend/internal/shared/server/respond"
)

const pingTimeout = 2 * time.Second

// Status is the health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	Sessions int    `json:"sessions"`
	Provider string `json:"provider"`
}

// Service reports liveness and dependency state.
type Service struct {
	DB       *sql.DB
	Provider string
	// Sessions reports the number of live sessions.
	Sessions func() int
}

// NewService constructs a new health service.
func NewService(db *sql.DB, provider string, sessions func() int) *Service {
	return &Service{DB: db, Provider: provider, Sessions: sessions}
}

// Status checks the database when one is configured.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{OK: true, Database: "memory", Provider: s.Provider}
	if s.Sessions != nil {
		st.Sessions = s.Sessions()
	}
	if s.DB == nil {
		return st
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		st.OK = false
		st.Database = "unreachable"
		return st
	}
	st.Database = "ok"
	return st
}

// Handle serves the health payload, answering 503 when a dependency is down.
func (s *Service) Handle(c *gin.Context) {
	st := s.Status(c.Request.Context())
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	respond.JSON(c, code, st)
}
