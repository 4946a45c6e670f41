package kpi

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/netops-engine/internal/config"
	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/opserr"
)

type fakeFaultStats struct {
	reported   int64
	settled    int64
	resolution database.ResolutionStats
	techs      []*database.TechnicianPerformance
}

func (f *fakeFaultStats) CountReportedSince(_ context.Context, _ time.Time) (int64, error) {
	return f.reported, nil
}

func (f *fakeFaultStats) CountSettledReportedSince(_ context.Context, _ time.Time) (int64, error) {
	return f.settled, nil
}

func (f *fakeFaultStats) ResolutionStatsSince(_ context.Context, _ time.Time) (*database.ResolutionStats, error) {
	stats := f.resolution
	return &stats, nil
}

func (f *fakeFaultStats) TechnicianPerformanceSince(_ context.Context, _ time.Time) ([]*database.TechnicianPerformance, error) {
	return f.techs, nil
}

type fakeComponentStats struct {
	total  int64
	active int64
}

func (f *fakeComponentStats) Counts(_ context.Context) (int64, int64, error) {
	return f.total, f.active, nil
}

func newTestAggregator(faults *fakeFaultStats, components *fakeComponentStats) *Aggregator {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAggregator(faults, components, nil, config.KPIConfig{}, logger)
}

func TestParseWindow(t *testing.T) {
	t.Run("Day Suffix", func(t *testing.T) {
		days, err := ParseWindow("7d", 7, 365)
		require.NoError(t, err)
		assert.Equal(t, int64(7), days)
	})

	t.Run("Bare Number", func(t *testing.T) {
		days, err := ParseWindow("30", 7, 365)
		require.NoError(t, err)
		assert.Equal(t, int64(30), days)
	})

	t.Run("Empty Uses Default", func(t *testing.T) {
		days, err := ParseWindow("", 7, 365)
		require.NoError(t, err)
		assert.Equal(t, int64(7), days)
	})

	t.Run("Capped At Max", func(t *testing.T) {
		days, err := ParseWindow("900d", 7, 365)
		require.NoError(t, err)
		assert.Equal(t, int64(365), days)
	})

	t.Run("Garbage Rejected", func(t *testing.T) {
		for _, raw := range []string{"abc", "-3d", "0d", "7w"} {
			_, err := ParseWindow(raw, 7, 365)
			assert.True(t, opserr.IsKind(err, opserr.KindValidation), "input %q", raw)
		}
	})
}

func TestAggregator_Summarize(t *testing.T) {
	ctx := context.Background()

	t.Run("Computes All Indicators", func(t *testing.T) {
		faults := &fakeFaultStats{
			reported: 14,
			settled:  7,
			resolution: database.ResolutionStats{
				ResolvedCount:      7,
				TotalResponseMins:  700,
				AvgResponseMinutes: 100,
			},
			techs: []*database.TechnicianPerformance{
				{TechnicianID: 1, TechnicianName: "Ana", AssignedCount: 9, ResolvedCount: 7},
			},
		}
		components := &fakeComponentStats{total: 10, active: 8}

		summary, err := newTestAggregator(faults, components).Summarize(ctx, 7)
		require.NoError(t, err)

		assert.Equal(t, 80.0, summary.UptimePercent)
		assert.Equal(t, 100.0, summary.MTTRMinutes)
		assert.Equal(t, 2.0, summary.FaultFrequency)
		assert.Equal(t, 50.0, summary.ResolutionPercent)

		// 7 days * 1440 min * 10 components = 100800 capacity minutes;
		// 700 minutes of downtime -> 99.31% after rounding.
		assert.Equal(t, 99.31, summary.AvailabilityPct)
		assert.Len(t, summary.Technicians, 1)
	})

	t.Run("Availability Clamped At Zero", func(t *testing.T) {
		faults := &fakeFaultStats{
			reported:   1,
			settled:    1,
			resolution: database.ResolutionStats{ResolvedCount: 1, TotalResponseMins: 5_000_000},
		}
		components := &fakeComponentStats{total: 1, active: 1}

		summary, err := newTestAggregator(faults, components).Summarize(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 0.0, summary.AvailabilityPct)
	})

	t.Run("Empty Window", func(t *testing.T) {
		summary, err := newTestAggregator(&fakeFaultStats{}, &fakeComponentStats{total: 4, active: 4}).Summarize(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 100.0, summary.UptimePercent)
		assert.Equal(t, 0.0, summary.MTTRMinutes)
		assert.Equal(t, 0.0, summary.FaultFrequency)
		assert.Equal(t, 0.0, summary.ResolutionPercent)
		assert.Equal(t, 100.0, summary.AvailabilityPct)
	})

	t.Run("No Components", func(t *testing.T) {
		summary, err := newTestAggregator(&fakeFaultStats{reported: 3}, &fakeComponentStats{}).Summarize(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 0.0, summary.UptimePercent)
		assert.Equal(t, 0.0, summary.AvailabilityPct)
		assert.Equal(t, 1.0, summary.FaultFrequency)
	})

	t.Run("Rejects Non Positive Window", func(t *testing.T) {
		_, err := newTestAggregator(&fakeFaultStats{}, &fakeComponentStats{}).Summarize(ctx, 0)
		assert.True(t, opserr.IsKind(err, opserr.KindValidation))
	})
}
