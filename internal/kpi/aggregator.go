// Package kpi derives operational indicators from fault, component and
// resolution data over a requested day window. Everything here is a pure
// read; the optional redis cache is best-effort and short-lived.
package kpi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gridops/netops-engine/internal/config"
	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/opserr"
)

const minutesPerDay = 1440

// FaultStats is the fault-side aggregate surface.
type FaultStats interface {
	CountReportedSince(ctx context.Context, since time.Time) (int64, error)
	CountSettledReportedSince(ctx context.Context, since time.Time) (int64, error)
	ResolutionStatsSince(ctx context.Context, since time.Time) (*database.ResolutionStats, error)
	TechnicianPerformanceSince(ctx context.Context, since time.Time) ([]*database.TechnicianPerformance, error)
}

// ComponentStats is the component-side aggregate surface.
type ComponentStats interface {
	Counts(ctx context.Context) (total, active int64, err error)
}

// Summary is the KPI set for one window.
type Summary struct {
	WindowDays        int64                             `json:"window_days"`
	TotalComponents   int64                             `json:"total_components"`
	ActiveComponents  int64                             `json:"active_components"`
	UptimePercent     float64                           `json:"uptime_percent"`
	MTTRMinutes       float64                           `json:"mttr_minutes"`
	FaultFrequency    float64                           `json:"fault_frequency_per_day"`
	FaultsReported    int64                             `json:"faults_reported"`
	FaultsSettled     int64                             `json:"faults_settled"`
	ResolutionPercent float64                           `json:"resolution_rate_percent"`
	AvailabilityPct   float64                           `json:"availability_percent"`
	Technicians       []*database.TechnicianPerformance `json:"technicians"`
	GeneratedAt       time.Time                         `json:"generated_at"`
}

// Aggregator computes KPI summaries, optionally caching them in redis.
type Aggregator struct {
	faults     FaultStats
	components ComponentStats
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewAggregator creates a new KPI aggregator. cache may be nil, in which case
// every request computes from the database.
func NewAggregator(faults FaultStats, components ComponentStats, cache *redis.Client, cfg config.KPIConfig, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		faults:     faults,
		components: components,
		cache:      cache,
		cacheTTL:   cfg.CacheTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// ParseWindow parses a "7d" style time range into a day count. Bare numbers
// are read as days. Zero value falls back to defaultDays; the result is
// capped at maxDays.
func ParseWindow(raw string, defaultDays, maxDays int64) (int64, error) {
	if raw == "" {
		return defaultDays, nil
	}
	trimmed := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "d")
	days, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || days <= 0 {
		return 0, opserr.New(opserr.KindValidation, "invalid time_range %q, expected a form like 7d", raw)
	}
	if days > maxDays {
		days = maxDays
	}
	return days, nil
}

// Summarize computes (or serves from cache) the KPI summary for the last
// windowDays days.
func (a *Aggregator) Summarize(ctx context.Context, windowDays int64) (*Summary, error) {
	if windowDays <= 0 {
		return nil, opserr.New(opserr.KindValidation, "window must be at least one day, got %d", windowDays)
	}

	cacheKey := fmt.Sprintf("netops:kpi:%dd", windowDays)
	if cached := a.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	summary, err := a.compute(ctx, windowDays)
	if err != nil {
		return nil, err
	}

	a.toCache(ctx, cacheKey, summary)
	return summary, nil
}

func (a *Aggregator) compute(ctx context.Context, windowDays int64) (*Summary, error) {
	now := a.now()
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	total, active, err := a.components.Counts(ctx)
	if err != nil {
		return nil, err
	}

	reported, err := a.faults.CountReportedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	settled, err := a.faults.CountSettledReportedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	resolution, err := a.faults.ResolutionStatsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	technicians, err := a.faults.TechnicianPerformanceSince(ctx, since)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		WindowDays:       windowDays,
		TotalComponents:  total,
		ActiveComponents: active,
		MTTRMinutes:      resolution.AvgResponseMinutes,
		FaultsReported:   reported,
		FaultsSettled:    settled,
		FaultFrequency:   float64(reported) / float64(windowDays),
		Technicians:      technicians,
		GeneratedAt:      now,
	}

	if total > 0 {
		summary.UptimePercent = round2(float64(active) / float64(total) * 100)

		// Approximation treating each resolved fault's response time as
		// component downtime within the window.
		capacity := float64(windowDays) * minutesPerDay * float64(total)
		availability := (capacity - float64(resolution.TotalResponseMins)) / capacity * 100
		summary.AvailabilityPct = round2(math.Max(0, availability))
	}
	if reported > 0 {
		summary.ResolutionPercent = round2(float64(settled) / float64(reported) * 100)
	}
	summary.MTTRMinutes = round2(summary.MTTRMinutes)
	summary.FaultFrequency = round2(summary.FaultFrequency)

	return summary, nil
}

func (a *Aggregator) fromCache(ctx context.Context, key string) *Summary {
	if a.cache == nil {
		return nil
	}
	raw, err := a.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			a.logger.Warn("KPI cache read failed", "key", key, "error", err)
		}
		return nil
	}
	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		a.logger.Warn("KPI cache entry unreadable", "key", key, "error", err)
		return nil
	}
	return &summary
}

func (a *Aggregator) toCache(ctx context.Context, key string, summary *Summary) {
	if a.cache == nil || a.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, raw, a.cacheTTL).Err(); err != nil {
		a.logger.Warn("KPI cache write failed", "key", key, "error", err)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
