package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"rollcall/internal/auth"
)

func TestTokenBucketRefills(t *testing.T) {
	now := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60, nil)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("clients must not share a bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatal("one token should refill after a second at 60/min")
	}
	if l.Allow("a") {
		t.Fatal("only one token should have refilled")
	}
}

func TestMiddlewareRejectsWithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewTokenBucket(1, 1, ByClientIP)
	r := gin.New()
	r.Use(RequestLogger("/healthz"), l.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 2)
	var retry string
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes[i] = w.Code
		retry = w.Header().Get("Retry-After")
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	if retry != "60" {
		t.Errorf("Retry-After = %q, want 60", retry)
	}
}

func TestBySessionSeparatesLogins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewTokenBucket(1, 1, BySession)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Session"); id != "" {
			c.Set(auth.ClaimsKey, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{ID: id}})
		}
		c.Next()
	}, l.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func(session string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if session != "" {
			req.Header.Set("X-Session", session)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	tests := []struct {
		session string
		want    int
	}{
		{"s1", http.StatusNoContent},
		{"s1", http.StatusTooManyRequests},
		{"s2", http.StatusNoContent},
		{"", http.StatusNoContent},
		{"", http.StatusTooManyRequests},
	}
	for i, tt := range tests {
		if got := send(tt.session); got != tt.want {
			t.Errorf("request %d (session %q) = %d, want %d", i, tt.session, got, tt.want)
		}
	}
}

func TestIdleBucketsAreSwept(t *testing.T) {
	now := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60, nil)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	now = now.Add(2 * time.Minute)
	l.Allow("c")

	l.mu.Lock()
	_, aKept := l.buckets["a"]
	n := len(l.buckets)
	l.mu.Unlock()
	if aKept || n != 1 {
		t.Errorf("buckets after sweep = %d (a kept: %v), want only c", n, aKept)
	}
}
