package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"pagewatch/internal/config"
	"pagewatch/internal/events"
)

// Fixed key names for the local durable store. Everything the store
// persists lives under the key namespace as serialized text.
const (
	keyNamespace   = "pagewatch:"
	keyTotalViews  = keyNamespace + "views:total"
	keyPagePrefix  = keyNamespace + "views:page:"
	keyEvents      = keyNamespace + "events"
	keyConversions = keyNamespace + "conversions"

	// KeyIdentity holds the durable identity record. It lives in the local
	// store even when the remote backend handles events.
	KeyIdentity = keyNamespace + "identity"
)

// KVRecord is one serialized entry in the local durable store.
type KVRecord struct {
	Key   string `gorm:"primaryKey;column:key;size:255"`
	Value string `gorm:"column:value;type:text;not null"`
}

// TableName overrides the gorm table name.
func (KVRecord) TableName() string {
	return "kv_records"
}

// LocalStore is the single-device durable backend: synchronous key/value
// persistence over SQLite. It maintains a global view counter, a per-page
// counter and a capped raw event list; counter reads are O(1) from day one,
// in contrast to the remote store which counts rows at query time.
type LocalStore struct {
	db     *gorm.DB
	cap    int
	logger *slog.Logger
}

// NewLocalStore opens (creating if needed) the local SQLite database and
// runs migrations.
func NewLocalStore(cfg *config.Config, logger *slog.Logger) (*LocalStore, error) {
	dsn := cfg.GetDatabasePath() + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	store := NewLocalStoreWithDB(db, cfg.EventCap, logger)
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewLocalStoreWithDB wraps an existing gorm connection. Used by tests with
// an in-memory database.
func NewLocalStoreWithDB(db *gorm.DB, eventCap int, logger *slog.Logger) *LocalStore {
	if eventCap <= 0 {
		eventCap = 1000
	}
	return &LocalStore{db: db, cap: eventCap, logger: logger}
}

// Migrate creates the key/value table.
func (s *LocalStore) Migrate() error {
	if err := s.db.AutoMigrate(&KVRecord{}); err != nil {
		return fmt.Errorf("failed to migrate local store: %w", err)
	}
	return nil
}

// GetValue returns the raw serialized value stored under key. The second
// return value reports whether the key exists.
func (s *LocalStore) GetValue(ctx context.Context, key string) (string, bool, error) {
	var rec KVRecord
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return rec.Value, true, nil
}

// SetValue writes the raw serialized value under key, overwriting any
// previous value.
func (s *LocalStore) SetValue(ctx context.Context, key, value string) error {
	rec := KVRecord{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// InsertEvent appends the event to the capped event list and bumps the
// global and per-page counters. The event list is evicted FIFO once it
// exceeds the cap; the counters keep counting past it.
func (s *LocalStore) InsertEvent(ctx context.Context, event *events.AnalyticsEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &LocalStore{db: tx, cap: s.cap, logger: s.logger}

		log := inner.readEventList(ctx)
		log = append(log, *event)
		for len(log) > s.cap {
			log = log[1:]
		}
		if err := inner.writeJSON(ctx, keyEvents, log); err != nil {
			return err
		}

		if err := inner.incrementCounter(ctx, keyTotalViews); err != nil {
			return err
		}
		return inner.incrementCounter(ctx, keyPagePrefix+event.PagePath)
	})
}

// InsertConversion appends the conversion to the conversion list. The list
// is not capped; conversions are rare relative to page views.
func (s *LocalStore) InsertConversion(ctx context.Context, event *events.ConversionEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &LocalStore{db: tx, cap: s.cap, logger: s.logger}
		log := inner.readConversionList(ctx)
		log = append(log, *event)
		return inner.writeJSON(ctx, keyConversions, log)
	})
}

// QueryEvents returns the full retained event log, oldest first.
func (s *LocalStore) QueryEvents(ctx context.Context) ([]events.AnalyticsEvent, error) {
	return s.readEventList(ctx), nil
}

// QueryConversions returns the full conversion log, oldest first.
func (s *LocalStore) QueryConversions(ctx context.Context) ([]events.ConversionEvent, error) {
	return s.readConversionList(ctx), nil
}

// CountTotal returns the cumulative page view counter.
func (s *LocalStore) CountTotal(ctx context.Context) (int64, error) {
	return s.readCounter(ctx, keyTotalViews)
}

// CountByPage returns the cumulative view counter for a single page path.
func (s *LocalStore) CountByPage(ctx context.Context, path string) (int64, error) {
	return s.readCounter(ctx, keyPagePrefix+path)
}

// Reset clears every key in the store's namespace, including the identity
// record. The operation is all-or-nothing.
func (s *LocalStore) Reset(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Where("key LIKE ?", keyNamespace+"%").
		Delete(&KVRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to reset local store: %w", err)
	}
	s.logger.Info("Local store reset")
	return nil
}

// readEventList deserializes the stored event list. Missing or corrupted
// data degrades to an empty log rather than an error.
func (s *LocalStore) readEventList(ctx context.Context) []events.AnalyticsEvent {
	raw, ok, err := s.GetValue(ctx, keyEvents)
	if err != nil || !ok {
		return []events.AnalyticsEvent{}
	}
	var log []events.AnalyticsEvent
	if err := json.Unmarshal([]byte(raw), &log); err != nil {
		s.logger.Warn("Corrupted event list in local store, treating as empty",
			slog.Any("error", err))
		return []events.AnalyticsEvent{}
	}
	return log
}

func (s *LocalStore) readConversionList(ctx context.Context) []events.ConversionEvent {
	raw, ok, err := s.GetValue(ctx, keyConversions)
	if err != nil || !ok {
		return []events.ConversionEvent{}
	}
	var log []events.ConversionEvent
	if err := json.Unmarshal([]byte(raw), &log); err != nil {
		s.logger.Warn("Corrupted conversion list in local store, treating as empty",
			slog.Any("error", err))
		return []events.ConversionEvent{}
	}
	return log
}

func (s *LocalStore) writeJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", key, err)
	}
	return s.SetValue(ctx, key, string(data))
}

func (s *LocalStore) readCounter(ctx context.Context, key string) (int64, error) {
	raw, ok, err := s.GetValue(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("Corrupted counter in local store, treating as zero",
			slog.String("key", key), slog.Any("error", err))
		return 0, nil
	}
	return count, nil
}

func (s *LocalStore) incrementCounter(ctx context.Context, key string) error {
	count, err := s.readCounter(ctx, key)
	if err != nil {
		return err
	}
	return s.SetValue(ctx, key, strconv.FormatInt(count+1, 10))
}
