package app

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abhi5157/Store-Rating-App/internal/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	SessionTTL      time.Duration
	SessionStrategy string // "redis" (default) or "jwt"
	JWTSecret       string

	// Store and Sessions override the defaults; tests inject the
	// in-memory implementations here.
	Store    store.Store
	Sessions store.SessionStore
}

// App wires storage, sessions, and the rating/role core together.
type App struct {
	store    store.Store
	sessions store.SessionStore

	// adminMu serializes the admin count-then-delete sequence so two
	// concurrent deletions cannot both observe count=2 and leave zero
	// admins behind.
	adminMu sync.Mutex
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		switch strings.TrimSpace(cfg.SessionStrategy) {
		case "jwt":
			var err error
			sessionStore, err = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
			if err != nil {
				return nil, fmt.Errorf("init jwt session store: %w", err)
			}
		case "", "redis":
			if strings.TrimSpace(cfg.RedisAddr) == "" {
				return nil, fmt.Errorf("redisAddr is required for redis session strategy")
			}
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		default:
			return nil, fmt.Errorf("unknown session strategy %q", cfg.SessionStrategy)
		}
	}

	return &App{
		store:    dataStore,
		sessions: sessionStore,
	}, nil
}
