package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exampool/internal/config"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
}

func TestRequireAdminJWT(t *testing.T) {
	auth := newAuth()
	userToken, _ := auth.GenerateToken("u1", service.TokenTypeUser, nil)
	adminToken, _ := auth.GenerateToken("a1", service.TokenTypeAdmin, []string{string(model.PermissionExamsWrite)})
	readOnly, _ := auth.GenerateToken("a2", service.TokenTypeAdmin, []string{string(model.PermissionExamsRead)})

	r := gin.New()
	r.POST("/admin", RequireAdminJWT(auth), RequirePermission(string(model.PermissionExamsWrite)), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).UserID)
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"user token", "Bearer " + userToken, http.StatusForbidden},
		{"missing permission", "Bearer " + readOnly, http.StatusForbidden},
		{"admin", "Bearer " + adminToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRequireWSAuthReadsQuery(t *testing.T) {
	auth := newAuth()
	token, _ := auth.GenerateToken("u1", service.TokenTypeUser, nil)

	r := gin.New()
	r.GET("/ws", RequireWSAuth(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}

	// Header tokens are not read on the WebSocket route.
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiterAllow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &RateLimiter{visitors: map[string]*visitor{}, rate: 2, interval: time.Minute, now: func() time.Time { return now }}

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests rejected")
	}
	if rl.allow("a") {
		t.Error("third request allowed")
	}
	if !rl.allow("b") {
		t.Error("separate caller rejected")
	}

	now = now.Add(time.Minute)
	if !rl.allow("a") {
		t.Error("request after refill rejected")
	}

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Errorf("visitors after cleanup = %d, want 0", len(rl.visitors))
	}
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("exampool ", 400)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Content-Encoding"); got != "br" {
		t.Fatalf("Content-Encoding = %q, want br", got)
	}
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(body) != large {
		t.Error("decoded body differs")
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Errorf("small body = %q with encoding %q", w.Body.String(), w.Header().Get("Content-Encoding"))
	}
}

func TestAcceptsBrotli(t *testing.T) {
	tests := map[string]bool{
		"":              false,
		"gzip":          false,
		"br":            true,
		"gzip, br;q=1":  true,
		"br;q=0, gzip":  false,
		" BR , deflate": true,
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", header)
		if got := acceptsBrotli(req); got != want {
			t.Errorf("acceptsBrotli(%q) = %v, want %v", header, got, want)
		}
	}
}
