package main

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Blog struct {
	store     Store
	cfg       Config
	templates map[string]*template.Template
	validate  *validator.Validate
	limiter   *rateLimiter
	now       func() time.Time

	// dummyHash is compared against when a login names an unknown user so
	// both failure paths cost one bcrypt comparison.
	dummyHash string
}

func NewBlog(store Store, cfg Config) *Blog {
	dummy, err := hashPassword("not-a-real-password", cfg.BcryptCost)
	if err != nil {
		panic(err)
	}

	return &Blog{
		store:     store,
		cfg:       cfg,
		templates: loadTemplates(),
		validate:  newValidator(),
		limiter:   newRateLimiter(cfg.LoginRate, cfg.LoginBurst),
		now:       time.Now,
		dummyHash: dummy,
	}
}

// maintain purges expired sessions and idle rate-limit buckets on every
// tick until ctx is cancelled.
func (b *Blog) maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.cleanupExpiredSessions(ctx); err != nil {
				log.Printf("cleaning up expired sessions: %v", err)
			}
			b.limiter.prune()
		}
	}
}

func main() {
	godotenv.Load()

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logFile, err := setupLogging(cfg.LogFile)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.StoreURL)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	blog := NewBlog(store, cfg)

	if _, err = blog.cleanupExpiredSessions(ctx); err != nil {
		log.Printf("cleaning up expired sessions: %v", err)
	}
	go blog.maintain(ctx, 1*time.Hour)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           blog.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
		return
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}
