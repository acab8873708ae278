// Package storage provides the persistence layer for the analytics
// pipeline: a uniform Store interface with two backends, a remote
// relational store and a local durable key/value store. The backend is
// chosen once at process start and never changes at runtime.
package storage

import (
	"context"
	"log/slog"

	"pagewatch/internal/config"
	"pagewatch/internal/events"
)

// Store is the uniform persistence interface the rest of the pipeline
// writes through and reads from. Both event logs are append-only; only
// Reset may purge them.
type Store interface {
	InsertEvent(ctx context.Context, event *events.AnalyticsEvent) error
	InsertConversion(ctx context.Context, event *events.ConversionEvent) error
	QueryEvents(ctx context.Context) ([]events.AnalyticsEvent, error)
	QueryConversions(ctx context.Context) ([]events.ConversionEvent, error)
	CountTotal(ctx context.Context) (int64, error)
	CountByPage(ctx context.Context, path string) (int64, error)
	Reset(ctx context.Context) error
}

// Select chooses the backend for this process lifetime. The remote store is
// selected if and only if remote credentials are configured with
// non-placeholder values; a remote store that fails to initialize degrades
// to the local store with a warning rather than surfacing an error.
func Select(cfg *config.Config, logger *slog.Logger, local *LocalStore) Store {
	if !cfg.HasRemoteConfig() {
		logger.Info("Remote store not configured, using local store",
			slog.String("database", cfg.GetDatabasePath()))
		return local
	}

	remote, err := NewRemoteStore(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize remote store, falling back to local store",
			slog.Any("error", err))
		return local
	}

	logger.Info("Using remote store", slog.String("endpoint", cfg.RemoteEndpoint))
	return remote
}
