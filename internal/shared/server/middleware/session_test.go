package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSessionCapturesRouteParamAndCredential(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var gotSession, gotCred string
	router.GET("/sessions/:sessionId", Session(), func(c *gin.Context) {
		gotSession = SessionIDFromContext(c)
		gotCred = CredentialFromContext(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/sessions/s-1", nil)
	req.Header.Set(CredentialHeader, "key-123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if gotSession != "s-1" {
		t.Fatalf("unexpected session id %q", gotSession)
	}
	if gotCred != "key-123" {
		t.Fatalf("unexpected credential %q", gotCred)
	}
}

func TestSessionAcceptsBearerCredential(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var gotCred string
	router.POST("/sessions", Session(), func(c *gin.Context) {
		gotCred = CredentialFromContext(c)
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if gotCred != "abc" {
		t.Fatalf("unexpected credential %q", gotCred)
	}
}
