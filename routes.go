package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (b *Blog) routes() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("/login", b.limitPost(b.Login))
	mux.HandleFunc("/register", b.limitPost(b.Register))
	mux.HandleFunc("GET /logout", b.Logout)
	mux.HandleFunc("POST /logout", b.Logout)
	mux.HandleFunc("GET /healthz", b.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Protected routes
	mux.HandleFunc("GET /{$}", b.requireAuth(b.Home))
	mux.HandleFunc("GET /blogs/new", b.requireAuth(b.New))
	mux.HandleFunc("POST /blogs", b.requireAuth(b.Create))
	mux.HandleFunc("GET /blogs/{id}", b.requireAuth(b.Show))
	mux.HandleFunc("GET /blogs/{id}/edit", b.requireAuth(b.Edit))
	mux.HandleFunc("PUT /blogs/{id}", b.requireAuth(b.Update))
	mux.HandleFunc("DELETE /blogs/{id}", b.requireAuth(b.Delete))

	return recoverPanics(logRequests(instrument(securityHeaders(methodOverride(mux)))))
}

func (b *Blog) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := b.store.Ping(ctx); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}
