package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMethodOverride(t *testing.T) {
	tests := []struct {
		name   string
		method string
		field  string
		want   string
	}{
		{"post to put", http.MethodPost, "PUT", http.MethodPut},
		{"post to delete", http.MethodPost, "DELETE", http.MethodDelete},
		{"lowercase", http.MethodPost, "delete", http.MethodDelete},
		{"unsupported override", http.MethodPost, "PATCH", http.MethodPost},
		{"no override", http.MethodPost, "", http.MethodPost},
		{"get is never overridden", http.MethodGet, "DELETE", http.MethodGet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := methodOverride(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Method
			}))

			form := url.Values{}
			if tt.field != "" {
				form.Set("_method", tt.field)
			}
			target := "/blogs/p1"
			var req *http.Request
			if tt.method == http.MethodGet {
				req = httptest.NewRequest(tt.method, target+"?"+form.Encode(), nil)
			} else {
				req = httptest.NewRequest(tt.method, target, strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}

			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("method = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMethodOverride_OnlyPostRoutes(t *testing.T) {
	var method string
	var parsed bool
	handler := methodOverride(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		parsed = r.Form != nil
	}))

	form := url.Values{}
	form.Set("_method", "DELETE")
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	if method != http.MethodPost {
		t.Errorf("method = %s, want %s", method, http.MethodPost)
	}
	if parsed {
		t.Error("expected the body of a non-post route to be left unread")
	}
}

func TestRouteLabel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /blogs/{id}", func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		path string
		want string
	}{
		{"/blogs/01920f6e-7c2a-7b3e-9a1d-3f5e8c2b4a10", "GET /blogs/{id}"},
		{"/blogs/whatever", "GET /blogs/{id}"},
		{"/random/abc", "unmatched"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			mux.ServeHTTP(httptest.NewRecorder(), req)

			if got := routeLabel(req); got != tt.want {
				t.Errorf("routeLabel(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func seriesCount(c prometheus.Collector) int {
	ch := make(chan prometheus.Metric)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	n := 0
	for range ch {
		n++
	}
	return n
}

func TestInstrument_UnknownPathsShareSeries(t *testing.T) {
	blog := setupTestBlog(t)
	handler := blog.routes()

	// Make sure the unmatched series exists before counting.
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	before := seriesCount(httpRequestsTotal)

	for i := range 50 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/x%d", i), nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	}

	if after := seriesCount(httpRequestsTotal); after != before {
		t.Errorf("expected unknown paths to share one series, got %d new", after-before)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(0.001, 2)

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if rl.allow("a") {
		t.Error("expected third request to be rejected")
	}
	if !rl.allow("b") {
		t.Error("expected a different client to have its own bucket")
	}

	// "a" is drained, "b" still has a token left; neither is full.
	if n := rl.prune(); n != 0 {
		t.Errorf("expected no buckets pruned, got %d", n)
	}
	if rl.size() != 2 {
		t.Errorf("expected 2 buckets, got %d", rl.size())
	}
}

func TestRateLimiter_PrunesFullBuckets(t *testing.T) {
	rl := newRateLimiter(1e9, 1)
	rl.allow("a")

	if n := rl.prune(); n != 1 {
		t.Errorf("expected refilled bucket to be pruned, got %d", n)
	}
	if rl.size() != 0 {
		t.Errorf("expected no buckets left, got %d", rl.size())
	}
}

func TestLimitPost(t *testing.T) {
	blog := setupTestBlog(t)
	blog.limiter = newRateLimiter(0.001, 2)

	form := url.Values{}
	form.Set("username", "alice")
	form.Set("password", "wrong")

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = serve(blog, newFormRequest(http.MethodPost, "/login", form)).Code
	}

	want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("attempt %d: expected status %d, got %d", i+1, want[i], codes[i])
		}
	}

	// Viewing the form is never throttled.
	if w := serve(blog, httptest.NewRequest(http.MethodGet, "/login", nil)); w.Code != http.StatusOK {
		t.Errorf("expected GET /login to stay available, got %d", w.Code)
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:52100"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	if got := clientKey(req); got != "203.0.113.7" {
		t.Errorf("clientKey() = %q, want %q", got, "203.0.113.7")
	}
}

func TestRecoverPanics(t *testing.T) {
	handler := recoverPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	blog := setupTestBlog(t)

	w := serve(blog, httptest.NewRequest(http.MethodGet, "/login", nil))

	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected X-Content-Type-Options nosniff, got %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	blog := setupTestBlog(t)
	serve(blog, httptest.NewRequest(http.MethodGet, "/login", nil))

	w := serve(blog, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "blog_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}
