package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docvault/internal/notify"
	"docvault/internal/util"
	"docvault/pkg/domain"
	"docvault/pkg/storage"
	"docvault/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	JWTSecret   string
	SessionTTL  time.Duration
	DefaultPlan domain.Plan

	// Injectable backends; constructed from the fields above when nil.
	Store    store.Store
	Sessions store.SessionStore
	Objects  storage.ObjectStore
	Notifier notify.Notifier
}

// App wires storage, sessions, blob storage, and notifications behind the
// operations the HTTP layer exposes.
type App struct {
	store       store.Store
	sessions    store.SessionStore
	objects     storage.ObjectStore
	notifier    notify.Notifier
	defaultPlan domain.Plan
}

// New constructs the application.
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
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return nil, fmt.Errorf("jwtSecret is required")
		}
		sessionStore = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
	}

	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	plan := cfg.DefaultPlan
	if plan.ID == "" {
		plan = domain.Plan{ID: "free", Name: "Free", StorageLimitBytes: 5 << 30}
	}
	if err := dataStore.SavePlan(plan); err != nil {
		return nil, fmt.Errorf("ensure default plan: %w", err)
	}

	return &App{
		store:       dataStore,
		sessions:    sessionStore,
		objects:     cfg.Objects,
		notifier:    notifier,
		defaultPlan: plan,
	}, nil
}

// emitEvent records the event in the outbox and publishes it to the bus.
// Failures are logged and never affect the transition that produced the event.
func (a *App) emitEvent(kind string, req domain.AccessRequest, payload map[string]any) {
	event := domain.Event{
		ID:        util.NewID(),
		Kind:      kind,
		RequestID: req.ID,
		OwnerID:   req.OwnerID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveEvent(event); err != nil {
		slog.Error("save notification event", "kind", kind, "request_id", req.ID, "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.notifier.Publish(ctx, event); err != nil {
		slog.Error("publish notification event", "kind", kind, "request_id", req.ID, "error", err)
	}
}
