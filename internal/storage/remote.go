package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pagewatch/internal/config"
	"pagewatch/internal/events"
)

// RemoteStore is the multi-client relational backend. Events and
// conversions are independent row appends with no ordering guarantee
// across clients, and totals are derived by counting rows at query time
// rather than maintained as separate counters.
type RemoteStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRemoteStore connects to the remote relational store and ensures the
// event tables exist. The access key is injected as the connection
// password so the endpoint URL can be shared without credentials.
func NewRemoteStore(cfg *config.Config, logger *slog.Logger) (*RemoteStore, error) {
	dsn, err := buildRemoteDSN(cfg.RemoteEndpoint, cfg.RemoteAccessKey)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote store: %w", err)
	}

	if err := db.AutoMigrate(&events.AnalyticsEvent{}, &events.ConversionEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate remote store: %w", err)
	}

	return &RemoteStore{db: db, logger: logger}, nil
}

// buildRemoteDSN merges the access key into the endpoint URL.
func buildRemoteDSN(endpoint, accessKey string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid remote endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("remote endpoint missing host: %s", endpoint)
	}

	username := "pagewatch"
	if parsed.User != nil && parsed.User.Username() != "" {
		username = parsed.User.Username()
	}
	parsed.User = url.UserPassword(username, accessKey)
	return parsed.String(), nil
}

// InsertEvent appends one event row.
func (s *RemoteStore) InsertEvent(ctx context.Context, event *events.AnalyticsEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// InsertConversion appends one conversion row.
func (s *RemoteStore) InsertConversion(ctx context.Context, event *events.ConversionEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to insert conversion: %w", err)
	}
	return nil
}

// QueryEvents returns the full event log ordered by timestamp.
func (s *RemoteStore) QueryEvents(ctx context.Context) ([]events.AnalyticsEvent, error) {
	var result []events.AnalyticsEvent
	err := s.db.WithContext(ctx).
		Order("timestamp ASC").
		Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return result, nil
}

// QueryConversions returns the full conversion log ordered by timestamp.
func (s *RemoteStore) QueryConversions(ctx context.Context) ([]events.ConversionEvent, error) {
	var result []events.ConversionEvent
	err := s.db.WithContext(ctx).
		Order("timestamp ASC").
		Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	return result, nil
}

// CountTotal counts event rows. Always equals the row count, even if the
// database adds an index-backed fast path.
func (s *RemoteStore) CountTotal(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&events.AnalyticsEvent{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// CountByPage counts event rows for one page path.
func (s *RemoteStore) CountByPage(ctx context.Context, path string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&events.AnalyticsEvent{}).
		Where("page_path = ?", path).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count events for page: %w", err)
	}
	return count, nil
}

// Reset is deliberately a no-op: the administrative reset clears local
// state only, remote rows require out-of-band deletion.
func (s *RemoteStore) Reset(ctx context.Context) error {
	s.logger.Warn("Reset requested on remote store; remote data requires out-of-band deletion")
	return nil
}
