// Package recorder builds analytics events from the navigation context and
// writes them through the selected storage backend. Writes are
// fire-and-forget from the caller's perspective: failures are logged and
// the event is dropped, never retried or queued (at-most-once delivery).
package recorder

import (
	"context"
	"log/slog"
	"time"

	"pagewatch/internal/events"
	"pagewatch/internal/identity"
	"pagewatch/internal/pkg/useragent"
	"pagewatch/internal/storage"
)

// PageViewInput carries the navigation context for one page view.
type PageViewInput struct {
	Path      string
	Referrer  string
	UserAgent string
	// LoadID identifies the client page load. Views are deduplicated per
	// path within each load.
	LoadID string
}

// ConversionInput carries the context for one conversion action.
type ConversionInput struct {
	Path     string
	Referrer string
}

// Recorder assembles and persists analytics events.
type Recorder struct {
	store      storage.Store
	identities *identity.Store
	guard      *Guard
	logger     *slog.Logger
	clock      func() time.Time
}

// New creates a Recorder writing through the given store.
func New(store storage.Store, identities *identity.Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:      store,
		identities: identities,
		guard:      NewGuard(),
		logger:     logger,
		clock:      time.Now,
	}
}

// WithClock overrides the time source; intended for tests.
func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	r.clock = clock
	return r
}

// RecordPageView records a single logical page view. At most one event is
// recorded per distinct path per page load; duplicates within a load are
// silently skipped. Safe for concurrent use. Errors are logged and
// swallowed.
func (r *Recorder) RecordPageView(ctx context.Context, input PageViewInput) {
	if input.Path == "" {
		return
	}

	if !r.guard.MarkSeen(input.LoadID, input.Path) {
		r.logger.Debug("Skipping duplicate page view for load",
			slog.String("path", input.Path))
		return
	}

	ident, err := r.identities.GetOrCreate(ctx)
	if err != nil {
		r.logger.Error("Failed to resolve identity, dropping page view",
			slog.Any("error", err))
		return
	}

	now := r.clock()
	referrer := input.Referrer
	if referrer == "" {
		referrer = events.DirectReferrer
	}
	ua := useragent.Parse(input.UserAgent)

	event := &events.AnalyticsEvent{
		ID:         events.NewEventID(now),
		PagePath:   input.Path,
		Timestamp:  now,
		Hour:       now.Hour(),
		DayOfWeek:  int(now.Weekday()),
		Referrer:   referrer,
		UserAgent:  ua.UserAgent,
		DeviceType: ua.DeviceType,
		Browser:    ua.Browser,
		OS:         ua.OS,
		UserID:     ident.UserID,
		VisitCount: ident.VisitCount,
		FirstVisit: ident.FirstVisit,
	}

	if err := r.store.InsertEvent(ctx, event); err != nil {
		r.logger.Error("Failed to store page view, event dropped",
			slog.String("path", input.Path), slog.Any("error", err))
		return
	}

	r.logger.Debug("Recorded page view",
		slog.String("path", input.Path), slog.String("user_id", ident.UserID))
}

// RecordConversion records a conversion action with the same identity and
// referrer capture as a page view. Errors are logged and swallowed.
func (r *Recorder) RecordConversion(ctx context.Context, input ConversionInput) {
	ident, err := r.identities.GetOrCreate(ctx)
	if err != nil {
		r.logger.Error("Failed to resolve identity, dropping conversion",
			slog.Any("error", err))
		return
	}

	now := r.clock()
	referrer := input.Referrer
	if referrer == "" {
		referrer = events.DirectReferrer
	}

	conversion := &events.ConversionEvent{
		ID:         events.NewEventID(now),
		PagePath:   input.Path,
		Timestamp:  now,
		Referrer:   referrer,
		UserID:     ident.UserID,
		VisitCount: ident.VisitCount,
		FirstVisit: ident.FirstVisit,
	}

	if err := r.store.InsertConversion(ctx, conversion); err != nil {
		r.logger.Error("Failed to store conversion, event dropped",
			slog.Any("error", err))
		return
	}

	r.logger.Debug("Recorded conversion", slog.String("user_id", ident.UserID))
}

// Guard exposes the dedup guard; intended for tests.
func (r *Recorder) Guard() *Guard {
	return r.guard
}
