package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantKeep bool
	}{
		{"absent", "", false},
		{"client supplied", "retry-42", true},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
		{"control characters", "abc\tdef", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestIDMiddleware())
			r.GET("/", func(c *gin.Context) { Fail(c, http.StatusConflict, ErrConflict) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got == "" {
				t.Fatal("X-Request-ID header missing")
			}
			if kept := got == tt.header; kept != tt.wantKeep {
				t.Errorf("header = %q, kept = %v, want %v", got, kept, tt.wantKeep)
			}

			var body Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Metadata.RequestID != got {
				t.Errorf("metadata request_id = %q, want %q", body.Metadata.RequestID, got)
			}
			if body.Error == nil || body.Error.Code != ErrConflict {
				t.Errorf("error = %+v, want CONFLICT", body.Error)
			}
		})
	}
}
