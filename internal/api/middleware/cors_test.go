package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func corsRouter(config CORSConfig) *gin.Engine {
	r := gin.New()
	r.Use(CORS(config))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestIsOriginAllowed(t *testing.T) {
	testCases := []struct {
		name   string
		origin string
		config CORSConfig
		want   bool
	}{
		{
			name:   "allow all",
			origin: "https://evil.example.com",
			config: CORSConfig{AllowAllOrigins: true},
			want:   true,
		},
		{
			name:   "listed origin",
			origin: "https://app.example.com",
			config: CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			want:   true,
		},
		{
			name:   "listed origin case-insensitive",
			origin: "https://App.Example.com",
			config: CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			want:   true,
		},
		{
			name:   "wildcard entry",
			origin: "https://anything.example.com",
			config: CORSConfig{AllowedOrigins: []string{"*"}},
			want:   true,
		},
		{
			name:   "unlisted origin",
			origin: "https://evil.example.com",
			config: CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			want:   false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsOriginAllowed(tc.origin, tc.config); got != tc.want {
				t.Errorf("IsOriginAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}

func TestCORSWildcard(t *testing.T) {
	router := corsRouter(CORSConfig{AllowAllOrigins: true})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "false" {
		t.Errorf("Allow-Credentials = %q, want false", got)
	}
}

func TestCORSUnlistedOriginGetsNoHeaders(t *testing.T) {
	router := corsRouter(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin received Allow-Origin %q", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("request itself must still be served, got status %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := corsRouter(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
