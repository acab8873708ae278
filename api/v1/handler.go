// Package v1 exposes the analytics pipeline over HTTP: fire-and-forget
// ingestion for the UI layer, plain derived records on the read side, and
// the guarded administrative reset. No backend-specific types cross this
// boundary.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"pagewatch/internal/aggregate"
	"pagewatch/internal/config"
	"pagewatch/internal/events"
	"pagewatch/internal/funnel"
	"pagewatch/internal/identity"
	"pagewatch/internal/insights"
	"pagewatch/internal/recorder"
	"pagewatch/internal/storage"
)

const (
	msgPageViewAccepted   = "Page view accepted"
	msgConversionAccepted = "Conversion accepted"
	msgDataReset          = "Local analytics data cleared"
	errInvalidRequest     = "Invalid request"
	errConfirmRequired    = "Reset requires confirm=true"
	errUnauthorized       = "Invalid admin token"
)

// AdminTokenHeader carries the administrative token for the reset endpoint.
const AdminTokenHeader = "X-Pagewatch-Admin-Token"

// Handler wires the HTTP surface to the pipeline.
type Handler struct {
	cfg        *config.Config
	store      storage.Store
	local      *storage.LocalStore
	recorder   *recorder.Recorder
	identities *identity.Store
	insights   *insights.Engine
	logger     *slog.Logger
}

// NewHandler creates the v1 handler set.
func NewHandler(cfg *config.Config, store storage.Store, local *storage.LocalStore, rec *recorder.Recorder, identities *identity.Store, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:        cfg,
		store:      store,
		local:      local,
		recorder:   rec,
		identities: identities,
		insights:   insights.NewEngineWithThresholds(cfg.InsightMinSampleInflow, cfg.InsightConversionFloor),
		logger:     logger,
	}
}

// RegisterRoutes mounts the v1 routes on the app.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/pageviews", h.CreatePageView)
	api.Post("/conversions", h.CreateConversion)

	api.Get("/stats/totals", h.GetTotals)
	api.Get("/stats/buckets", h.GetBuckets)
	api.Get("/stats/pages", h.GetPages)
	api.Get("/stats/funnel", h.GetFunnel)
	api.Get("/stats/insights", h.GetInsights)

	api.Delete("/data", h.ResetData)
}

// PageViewParams is the ingest payload for a page view.
type PageViewParams struct {
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
	UserAgent string `json:"userAgent"`
	LoadID    string `json:"loadId"`
}

// ConversionParams is the ingest payload for a conversion action.
type ConversionParams struct {
	Path     string `json:"path"`
	Referrer string `json:"referrer"`
}

// CreatePageView records a page view. The write is fire-and-forget: the
// response is 202 whether or not the storage write succeeds.
func (h *Handler) CreatePageView(c *fiber.Ctx) error {
	var params PageViewParams
	if err := c.BodyParser(&params); err != nil || params.Path == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	}

	userAgent := params.UserAgent
	if userAgent == "" {
		userAgent = c.Get("User-Agent")
	}

	h.recorder.RecordPageView(c.UserContext(), recorder.PageViewInput{
		Path:      params.Path,
		Referrer:  params.Referrer,
		UserAgent: userAgent,
		LoadID:    params.LoadID,
	})

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": msgPageViewAccepted,
		"status":  http.StatusAccepted,
	})
}

// CreateConversion records a conversion action, fire-and-forget.
func (h *Handler) CreateConversion(c *fiber.Ctx) error {
	var params ConversionParams
	if err := c.BodyParser(&params); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	}

	h.recorder.RecordConversion(c.UserContext(), recorder.ConversionInput{
		Path:     params.Path,
		Referrer: params.Referrer,
	})

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": msgConversionAccepted,
		"status":  http.StatusAccepted,
	})
}

// GetTotals returns the cumulative view counter, optionally scoped to one
// page via the path query parameter.
func (h *Handler) GetTotals(c *fiber.Ctx) error {
	ctx := c.UserContext()

	total, err := h.store.CountTotal(ctx)
	if err != nil {
		h.logger.Error("Failed to count total views", slog.Any("error", err))
		total = 0
	}

	response := fiber.Map{"total": total}
	if path := c.Query("path"); path != "" {
		pageCount, err := h.store.CountByPage(ctx, path)
		if err != nil {
			h.logger.Error("Failed to count page views",
				slog.String("path", path), slog.Any("error", err))
			pageCount = 0
		}
		response["page"] = path
		response["page_total"] = pageCount
	}

	return c.JSON(response)
}

// GetBuckets returns the time and categorical breakdowns of the event log.
func (h *Handler) GetBuckets(c *fiber.Ctx) error {
	evts := h.queryEvents(c)

	return c.JSON(fiber.Map{
		"hourly":   aggregate.ByHour(evts),
		"daily":    aggregate.ByDay(evts),
		"weekly":   aggregate.ByWeek(evts),
		"monthly":  aggregate.ByMonth(evts),
		"weekdays": aggregate.ByDayOfWeek(evts),
		"devices":  aggregate.ByDevice(evts),
		"browsers": aggregate.ByBrowser(evts),
		"sources":  aggregate.ByReferrerSource(evts),
	})
}

// GetPages returns per-page counts with bounce rates and engagement.
func (h *Handler) GetPages(c *fiber.Ctx) error {
	evts := h.queryEvents(c)

	return c.JSON(fiber.Map{
		"counts":     aggregate.PageCounts(evts),
		"engagement": aggregate.PageEngagement(evts),
	})
}

// GetFunnel returns both funnel outputs: the per-session source
// performance analysis and the coarse by-source funnel.
func (h *Handler) GetFunnel(c *fiber.Ctx) error {
	evts := h.queryEvents(c)
	conversions := h.queryConversions(c)

	return c.JSON(fiber.Map{
		"sources": funnel.SourcePerformances(evts, conversions),
		"funnel":  funnel.BySource(evts, conversions),
	})
}

// GetInsights returns the heuristic insight report.
func (h *Handler) GetInsights(c *fiber.Ctx) error {
	ctx := c.UserContext()
	evts := h.queryEvents(c)
	conversions := h.queryConversions(c)

	total, err := h.store.CountTotal(ctx)
	if err != nil {
		h.logger.Error("Failed to count total views", slog.Any("error", err))
		total = 0
	}

	report := h.insights.Generate(insights.Input{
		RecentDaily: aggregate.ByDay(evts),
		Referrers:   aggregate.ByReferrerSource(evts),
		Devices:     aggregate.ByDevice(evts),
		Browsers:    aggregate.ByBrowser(evts),
		TotalViews:  total,
		Funnel:      funnel.BySource(evts, conversions),
	})

	return c.JSON(report)
}

// ResetData clears all local analytics keys, including the identity
// record. It requires explicit confirmation and the configured admin
// token. Remote store data is untouched by design and needs out-of-band
// deletion.
func (h *Handler) ResetData(c *fiber.Ctx) error {
	if c.Query("confirm") != "true" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errConfirmRequired})
	}
	if h.cfg.AdminToken == "" || c.Get(AdminTokenHeader) != h.cfg.AdminToken {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": errUnauthorized})
	}

	ctx := c.UserContext()
	if err := h.local.Reset(ctx); err != nil {
		h.logger.Error("Failed to reset local store", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reset local data",
		})
	}
	if err := h.store.Reset(ctx); err != nil {
		h.logger.Error("Failed to reset selected store", slog.Any("error", err))
	}
	h.identities.Forget()

	return c.JSON(fiber.Map{"message": msgDataReset})
}

// queryEvents reads the full event log; failures degrade to an empty log.
func (h *Handler) queryEvents(c *fiber.Ctx) []events.AnalyticsEvent {
	evts, err := h.store.QueryEvents(c.UserContext())
	if err != nil {
		h.logger.Error("Failed to query events", slog.Any("error", err))
		return []events.AnalyticsEvent{}
	}
	return evts
}

// queryConversions reads the conversion log; failures degrade to empty.
func (h *Handler) queryConversions(c *fiber.Ctx) []events.ConversionEvent {
	conversions, err := h.store.QueryConversions(c.UserContext())
	if err != nil {
		h.logger.Error("Failed to query conversions", slog.Any("error", err))
		return []events.ConversionEvent{}
	}
	return conversions
}
