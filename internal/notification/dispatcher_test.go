package notification

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/metrics"
)

type fakeStore struct {
	created   []*database.Notification
	createErr error
}

func (s *fakeStore) Create(_ context.Context, n *database.Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, n)
	return nil
}

type fakeDirectory struct {
	users   []*database.User
	listErr error
}

func (d *fakeDirectory) ListActiveByRoles(_ context.Context, _ ...database.Role) ([]*database.User, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.users, nil
}

func newTestDispatcher(store *fakeStore, directory *fakeDirectory) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	collector := metrics.NewCollector(prometheus.NewRegistry())
	return NewDispatcher(store, directory, logger, collector)
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("Insert Failure Is Swallowed", func(t *testing.T) {
		store := &fakeStore{createErr: errors.New("connection refused")}
		dispatcher := newTestDispatcher(store, &fakeDirectory{})

		// Must not panic or propagate anything.
		dispatcher.Notify(ctx, 1, TypeAssignment, "msg", "/faults/1")
		dispatcher.NotifyAssignment(ctx, 1, 42, "Fiber cut")
		assert.Empty(t, store.created)
	})

	t.Run("Assignment Notification", func(t *testing.T) {
		store := &fakeStore{}
		dispatcher := newTestDispatcher(store, &fakeDirectory{})

		dispatcher.NotifyAssignment(ctx, 7, 42, "Fiber cut")
		require.Len(t, store.created, 1)
		assert.Equal(t, int64(7), store.created[0].UserID)
		assert.Equal(t, TypeAssignment, store.created[0].NotifType)
		assert.Equal(t, "/faults/42", store.created[0].Link)
	})

	t.Run("Status Change Skips Self", func(t *testing.T) {
		store := &fakeStore{}
		dispatcher := newTestDispatcher(store, &fakeDirectory{})

		dispatcher.NotifyStatusChange(ctx, 7, 7, 42, database.FaultOpen, database.FaultInProgress)
		assert.Empty(t, store.created)

		dispatcher.NotifyStatusChange(ctx, 7, 9, 42, database.FaultOpen, database.FaultInProgress)
		require.Len(t, store.created, 1)
		assert.Equal(t, int64(7), store.created[0].UserID)
		assert.Equal(t, TypeStatusChange, store.created[0].NotifType)
	})

	t.Run("Low Stock Fans Out To Admins And Managers", func(t *testing.T) {
		store := &fakeStore{}
		directory := &fakeDirectory{users: []*database.User{
			{ID: 1, Role: database.RoleAdmin},
			{ID: 2, Role: database.RoleManager},
		}}
		dispatcher := newTestDispatcher(store, directory)

		dispatcher.NotifyLowStock(ctx, 5, "SFP module", 2, 3)
		require.Len(t, store.created, 2)
		for _, n := range store.created {
			assert.Equal(t, TypeLowStock, n.NotifType)
			assert.Equal(t, "/inventory/5", n.Link)
			assert.Contains(t, n.Message, "SFP module")
		}
	})

	t.Run("Low Stock Recipient Lookup Failure Is Swallowed", func(t *testing.T) {
		store := &fakeStore{}
		directory := &fakeDirectory{listErr: errors.New("timeout")}
		dispatcher := newTestDispatcher(store, directory)

		dispatcher.NotifyLowStock(ctx, 5, "SFP module", 2, 3)
		assert.Empty(t, store.created)
	})
}
