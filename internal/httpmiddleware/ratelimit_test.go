package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestTokenBucket(t *testing.T) {
	ctx := context.Background()
	l := NewTokenBucket(3, 60)

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "1.2.3.4") {
		t.Error("request over capacity should be denied")
	}

	// Other clients have their own bucket.
	if !l.Allow(ctx, "5.6.7.8") {
		t.Error("fresh client should be allowed")
	}
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) bool { return false }

type allowAll struct{}

func (allowAll) Allow(context.Context, string) bool { return true }

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("denied requests get 429", func(t *testing.T) {
		r := gin.New()
		r.Use(RateLimit(denyAll{}))
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d, want 429", w.Code)
		}
	})

	t.Run("allowed requests pass through", func(t *testing.T) {
		r := gin.New()
		r.Use(RateLimit(allowAll{}))
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}
