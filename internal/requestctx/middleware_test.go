package requestctx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"remit-backoffice/internal/auth"

	"github.com/gin-gonic/gin"
)

func TestMiddleware_BeginsAndEndsContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	var seen Context
	var seenOK bool

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "user-9", "org-3", "owner")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, Middleware(store), func(c *gin.Context) {
		// During the request the context must be visible under the request id.
		rid := c.Writer.Header().Get("X-Request-Id")
		seen, seenOK, _ = store.Get(context.Background(), rid)
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x?page=2", nil)
	req.Header.Set("User-Agent", "backoffice-test")
	req.Header.Set("X-Integration-Mode", "sandbox")
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
	if !seenOK {
		t.Fatalf("expected context visible during request")
	}
	if seen.ActorUserID != "user-9" || seen.OrganisationID != "org-3" {
		t.Fatalf("unexpected identity: %+v", seen)
	}
	if seen.UserAgent != "backoffice-test" {
		t.Fatalf("expected user agent captured, got %q", seen.UserAgent)
	}
	if seen.Metadata["integration_mode"] != "sandbox" {
		t.Fatalf("expected integration mode metadata, got %v", seen.Metadata)
	}
	if seen.Metadata["method"] != http.MethodGet {
		t.Fatalf("expected method metadata, got %v", seen.Metadata)
	}

	// After the response the entry must be gone.
	if store.Len() != 0 {
		t.Fatalf("expected context ended after response, %d remain", store.Len())
	}
}

func TestMiddleware_EndsContextOnHandlerError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	r := gin.New()
	r.GET("/boom", Middleware(store), func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if store.Len() != 0 {
		t.Fatalf("expected context ended after failed response, %d remain", store.Len())
	}
}

// endObservingStore records the context state seen by End.
type endObservingStore struct {
	*MemoryStore
	endCtxErr error
}

func (s *endObservingStore) End(ctx context.Context, requestID string) error {
	s.endCtxErr = ctx.Err()
	return s.MemoryStore.End(ctx, requestID)
}

func TestMiddleware_EndSurvivesClientDisconnect(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &endObservingStore{MemoryStore: NewMemoryStore()}
	r := gin.New()
	r.GET("/x", Middleware(store), func(c *gin.Context) {
		c.Status(200)
	})

	reqCtx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(reqCtx)
	cancel()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if store.endCtxErr != nil {
		t.Fatalf("End saw a canceled context: %v", store.endCtxErr)
	}
	if store.Len() != 0 {
		t.Fatalf("expected context ended despite disconnect, %d remain", store.Len())
	}
}

func TestMiddleware_AnonymousRequestStillTracked(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	var seen Context
	var seenOK bool

	r := gin.New()
	r.GET("/x", Middleware(store), func(c *gin.Context) {
		rid := c.Writer.Header().Get("X-Request-Id")
		seen, seenOK, _ = store.Get(context.Background(), rid)
		c.Status(200)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if !seenOK {
		t.Fatalf("expected context for anonymous request")
	}
	if seen.ActorUserID != "" {
		t.Fatalf("expected empty actor for anonymous request, got %q", seen.ActorUserID)
	}
}
