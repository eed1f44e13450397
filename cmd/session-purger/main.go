package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	ingestionpostgres "github.com/atlasmarkets/refdata/internal/domains/ingestion/adapters/persistence/postgres"
	platformpostgres "github.com/atlasmarkets/refdata/internal/platform/postgres"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	db, cleanup := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanup()
	if db == nil {
		log.Fatal("POSTGRES_DSN not set or connection failed; cannot purge sessions")
	}

	store := ingestionpostgres.NewSessionStore(db)
	purged, err := store.PurgeTerminal(ctx, retentionFromEnv())
	if err != nil {
		log.Fatalf("failed to purge sessions: %v", err)
	}
	log.Printf("session purge completed, removed %d sessions", purged)
}

func retentionFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("SESSION_RETENTION_DAYS"))
	if raw == "" {
		return ingestionpostgres.DefaultSessionRetention
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return ingestionpostgres.DefaultSessionRetention
	}
	return time.Duration(days) * 24 * time.Hour
}
