package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/netops-engine/internal/config"
	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/inventory"
	"github.com/gridops/netops-engine/internal/kpi"
	"github.com/gridops/netops-engine/internal/lifecycle"
	"github.com/gridops/netops-engine/internal/metrics"
	"github.com/gridops/netops-engine/internal/opserr"
)

type fakeFaultStore struct {
	faults map[int64]*database.Fault
	nextID int64
}

func (s *fakeFaultStore) Create(_ context.Context, fault *database.Fault) error {
	fault.ID = s.nextID
	fault.ReportedAt = time.Now()
	fault.Version = 1
	s.nextID++
	s.faults[fault.ID] = fault
	return nil
}

func (s *fakeFaultStore) GetByID(_ context.Context, id int64) (*database.Fault, error) {
	fault, ok := s.faults[id]
	if !ok {
		return nil, opserr.New(opserr.KindNotFound, "fault %d not found", id)
	}
	copied := *fault
	return &copied, nil
}

func (s *fakeFaultStore) Update(_ context.Context, fault *database.Fault) error {
	fault.Version++
	s.faults[fault.ID] = fault
	return nil
}

func (s *fakeFaultStore) List(_ context.Context, _ database.Filter) ([]*database.Fault, int, error) {
	return nil, 0, nil
}

func (s *fakeFaultStore) CountActiveForComponent(_ context.Context, _, _ int64) (int64, error) {
	return 0, nil
}

func (s *fakeFaultStore) CountReportedSince(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeFaultStore) CountSettledReportedSince(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeFaultStore) ResolutionStatsSince(_ context.Context, _ time.Time) (*database.ResolutionStats, error) {
	return &database.ResolutionStats{}, nil
}

func (s *fakeFaultStore) TechnicianPerformanceSince(_ context.Context, _ time.Time) ([]*database.TechnicianPerformance, error) {
	return nil, nil
}

type fakeComponentStore struct{}

func (s *fakeComponentStore) GetByID(_ context.Context, id int64) (*database.Component, error) {
	if id != 10 {
		return nil, opserr.New(opserr.KindNotFound, "component %d not found", id)
	}
	return &database.Component{ID: 10, Status: database.ComponentActive}, nil
}

func (s *fakeComponentStore) SetStatus(_ context.Context, _ int64, _, _ database.ComponentStatus) (bool, error) {
	return true, nil
}

func (s *fakeComponentStore) Counts(_ context.Context) (int64, int64, error) {
	return 1, 1, nil
}

type fakeUserStore struct{}

func (s *fakeUserStore) GetByID(_ context.Context, id int64) (*database.User, error) {
	if id != 1 {
		return nil, opserr.New(opserr.KindNotFound, "user %d not found", id)
	}
	return &database.User{ID: 1, Role: database.RoleTechnician, IsActive: true}, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyAssignment(context.Context, int64, int64, string) {}
func (noopNotifier) NotifyStatusChange(context.Context, int64, int64, int64, database.FaultStatus, database.FaultStatus) {
}
func (noopNotifier) NotifyLowStock(context.Context, int64, string, int64, int64) {}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, int64, string, string, int64, string) {}

type fakeInventoryStore struct {
	quantity int64
}

func (s *fakeInventoryStore) GetItem(_ context.Context, id int64) (*database.InventoryItem, error) {
	if id != 1 {
		return nil, opserr.New(opserr.KindNotFound, "inventory item %d not found", id)
	}
	return &database.InventoryItem{ID: 1, Name: "SFP module", Quantity: s.quantity, MinLevel: 1}, nil
}

func (s *fakeInventoryStore) List(_ context.Context) ([]*database.InventoryItem, error) {
	return nil, nil
}

func (s *fakeInventoryStore) ApplyMovement(_ context.Context, id, delta, _ int64, _ string) (*database.MovementOutcome, error) {
	if id != 1 {
		return nil, opserr.New(opserr.KindNotFound, "inventory item %d not found", id)
	}
	if s.quantity+delta < 0 {
		return nil, opserr.New(opserr.KindInsufficientStock,
			"item %d has %d in stock, %d requested", id, s.quantity, -delta)
	}
	s.quantity += delta
	return &database.MovementOutcome{ItemID: 1, ItemName: "SFP module", NewQuantity: s.quantity, MinLevel: 1}, nil
}

func newTestRouter(t *testing.T) (*mux.Router, *fakeFaultStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	collector := metrics.NewCollector(prometheus.NewRegistry())
	cfg := &config.Config{KPI: config.KPIConfig{DefaultWindowDays: 7, MaxWindowDays: 365}}

	faultStore := &fakeFaultStore{faults: make(map[int64]*database.Fault), nextID: 1}
	componentStore := &fakeComponentStore{}
	auditor := noopAuditor{}
	notifier := noopNotifier{}

	sync := lifecycle.NewSynchronizer(componentStore, auditor, logger)
	manager := lifecycle.NewManager(
		faultStore, componentStore, &fakeUserStore{}, sync, notifier, auditor, logger, collector)
	ledger := inventory.NewLedger(&fakeInventoryStore{quantity: 3}, notifier, auditor, logger, collector)
	aggregator := kpi.NewAggregator(faultStore, componentStore, nil, config.KPIConfig{}, logger)

	handler := NewHTTPHandler(cfg, logger, manager, ledger, nil, aggregator, nil)
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware)
	router.Use(ActorMiddleware)
	handler.RegisterRoutes(router)
	return router, faultStore
}

func do(router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Actor-ID", "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHandler_StatusCodes(t *testing.T) {
	t.Run("Health", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(router, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Create Fault", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(router, http.MethodPost, "/faults",
			`{"title":"Fiber cut","category":"connectivity","priority":"high"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("Missing Title Is 400", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(router, http.MethodPost, "/faults", `{"category":"connectivity"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unknown Fault Is 404", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(router, http.MethodGet, "/faults/99", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Invalid Transition Is 400", func(t *testing.T) {
		router, store := newTestRouter(t)
		rec := do(router, http.MethodPost, "/faults",
			`{"title":"Fiber cut","category":"connectivity"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, store.faults, 1)

		rec = do(router, http.MethodPut, "/faults/1/status", `{"status":"closed"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Stale Version Is 409", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(router, http.MethodPost, "/faults",
			`{"title":"Fiber cut","category":"connectivity"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = do(router, http.MethodPut, "/faults/1/status",
			`{"status":"in_progress","version":42}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Insufficient Stock Is 400", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(router, http.MethodPost, "/inventory/1/use", `{"quantity":10}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Valid Debit", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(router, http.MethodPost, "/inventory/1/use", `{"quantity":2}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Bad KPI Window Is 400", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(router, http.MethodGet, "/metrics/kpi?time_range=banana", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("KPI Summary", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(router, http.MethodGet, "/metrics/kpi?time_range=7d", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "availability_percent")
	})

	t.Run("Bad Path ID Is 400", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(router, http.MethodGet, "/faults/banana", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
