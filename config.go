package main

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Addr          string
	StoreURL      string
	SessionTTL    time.Duration
	SecureCookies bool
	BcryptCost    int
	LoginRate     float64
	LoginBurst    int
	LogFile       string
}

// loadConfig reads settings through getenv so tests can pass a map lookup
// instead of touching the process environment.
func loadConfig(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:       getenv("ADDR"),
		StoreURL:   getenv("STORE_URL"),
		SessionTTL: 24 * time.Hour,
		BcryptCost: bcrypt.DefaultCost,
		LoginRate:  1,
		LoginBurst: 5,
		LogFile:    getenv("LOG_FILE"),
	}

	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.StoreURL == "" {
		cfg.StoreURL = "blog.db"
	}

	cfg.SecureCookies = getenv("SECURE_COOKIES") == "true"

	if v := getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing SESSION_TTL: %w", err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("SESSION_TTL must be positive, got %s", d)
		}
		cfg.SessionTTL = d
	}

	if v := getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing BCRYPT_COST: %w", err)
		}
		if n < bcrypt.MinCost || n > bcrypt.MaxCost {
			return Config{}, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, n)
		}
		cfg.BcryptCost = n
	}

	if v := getenv("LOGIN_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parsing LOGIN_RATE: %w", err)
		}
		if f <= 0 {
			return Config{}, fmt.Errorf("LOGIN_RATE must be positive, got %v", f)
		}
		cfg.LoginRate = f
	}

	if v := getenv("LOGIN_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing LOGIN_BURST: %w", err)
		}
		if n < 1 {
			return Config{}, fmt.Errorf("LOGIN_BURST must be at least 1, got %d", n)
		}
		cfg.LoginBurst = n
	}

	return cfg, nil
}
