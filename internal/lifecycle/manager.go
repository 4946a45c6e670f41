// Package lifecycle owns the fault state machine: creation, assignment,
// guarded status transitions and scheduling, plus the component status
// synchronization they trigger. Dependent side effects (notifications, audit)
// are best-effort and never roll back the primary write.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/metrics"
	"github.com/gridops/netops-engine/internal/opserr"
)

// FaultStore persists fault rows.
type FaultStore interface {
	Create(ctx context.Context, fault *database.Fault) error
	GetByID(ctx context.Context, id int64) (*database.Fault, error)
	Update(ctx context.Context, fault *database.Fault) error
	List(ctx context.Context, filter database.Filter) ([]*database.Fault, int, error)
	CountActiveForComponent(ctx context.Context, componentID, excludeFaultID int64) (int64, error)
}

// ComponentStore reads and flips component status.
type ComponentStore interface {
	GetByID(ctx context.Context, id int64) (*database.Component, error)
	SetStatus(ctx context.Context, id int64, status, fromStatus database.ComponentStatus) (bool, error)
}

// UserStore resolves technician references.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*database.User, error)
}

// Notifier dispatches best-effort notifications.
type Notifier interface {
	NotifyAssignment(ctx context.Context, technicianID, faultID int64, title string)
	NotifyStatusChange(ctx context.Context, reporterID, actorID, faultID int64, from, to database.FaultStatus)
}

// Auditor records best-effort audit entries.
type Auditor interface {
	Record(ctx context.Context, actorID int64, action, entityType string, entityID int64, details string)
}

// CreateFaultInput carries the fields for a new fault.
type CreateFaultInput struct {
	ComponentID *int64
	Title       string
	Category    string
	Description string
	Priority    database.FaultPriority
}

// Manager drives faults through their lifecycle. It is the sole mutator of
// fault rows.
type Manager struct {
	faults     FaultStore
	components ComponentStore
	users      UserStore
	sync       *Synchronizer
	notifier   Notifier
	auditor    Auditor
	logger     *slog.Logger
	metrics    *metrics.Collector
	now        func() time.Time
}

// NewManager creates a new fault lifecycle manager.
func NewManager(
	faults FaultStore,
	components ComponentStore,
	users UserStore,
	sync *Synchronizer,
	notifier Notifier,
	auditor Auditor,
	logger *slog.Logger,
	collector *metrics.Collector,
) *Manager {
	return &Manager{
		faults:     faults,
		components: components,
		users:      users,
		sync:       sync,
		notifier:   notifier,
		auditor:    auditor,
		logger:     logger,
		metrics:    collector,
		now:        time.Now,
	}
}

// Create opens a new fault. A critical fault against a component marks that
// component faulty as a side effect.
func (m *Manager) Create(ctx context.Context, actorID int64, input CreateFaultInput) (*database.Fault, error) {
	if input.Title == "" {
		return nil, opserr.New(opserr.KindValidation, "title is required")
	}
	if input.Category == "" {
		return nil, opserr.New(opserr.KindValidation, "category is required")
	}
	if input.Priority == "" {
		input.Priority = database.PriorityMedium
	}
	if !database.ValidFaultPriority(input.Priority) {
		return nil, opserr.New(opserr.KindValidation, "unknown priority %q", input.Priority)
	}

	if input.ComponentID != nil {
		if _, err := m.components.GetByID(ctx, *input.ComponentID); err != nil {
			return nil, err
		}
	}

	fault := &database.Fault{
		ComponentID: input.ComponentID,
		ReportedBy:  actorID,
		Title:       input.Title,
		Category:    input.Category,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      database.FaultOpen,
	}

	if err := m.faults.Create(ctx, fault); err != nil {
		return nil, err
	}
	m.metrics.FaultsCreated.WithLabelValues(string(fault.Priority)).Inc()

	if fault.Priority == database.PriorityCritical && fault.ComponentID != nil {
		if err := m.sync.MarkFaulty(ctx, actorID, *fault.ComponentID); err != nil {
			// The fault row is committed; component sync is an at-most-once
			// side effect that must not fail the creation.
			m.logger.Error("Failed to mark component faulty",
				"fault_id", fault.ID, "component_id", *fault.ComponentID, "error", err)
		}
	}

	m.auditor.Record(ctx, actorID, "fault.create", "fault", fault.ID,
		fmt.Sprintf("reported %s fault: %s", fault.Priority, fault.Title))
	return fault, nil
}

// Assign sets a fault's assignee to a technician-eligible user. First
// assignment of an open fault implicitly starts work, moving it to in
// progress. expectedVersion guards against concurrent assignment.
func (m *Manager) Assign(ctx context.Context, actorID, faultID, technicianID, expectedVersion int64) (*database.Fault, error) {
	fault, err := m.getVersioned(ctx, faultID, expectedVersion)
	if err != nil {
		return nil, err
	}

	technician, err := m.users.GetByID(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	if technician.Role != database.RoleTechnician && technician.Role != database.RoleAdmin {
		return nil, opserr.New(opserr.KindValidation,
			"user %d holds role %s and cannot be assigned faults", technicianID, technician.Role)
	}

	previous := fault.Status
	fault.AssignedTo = &technicianID
	if fault.Status == database.FaultOpen {
		m.enterInProgress(fault)
	}

	if err := m.faults.Update(ctx, fault); err != nil {
		return nil, err
	}
	if fault.Status != previous {
		m.metrics.FaultTransitions.WithLabelValues(string(previous), string(fault.Status)).Inc()
	}

	m.notifier.NotifyAssignment(ctx, technicianID, fault.ID, fault.Title)
	m.auditor.Record(ctx, actorID, "fault.assign", "fault", fault.ID,
		fmt.Sprintf("assigned to user %d", technicianID))
	return fault, nil
}

// Unassign clears a fault's assignee without reverting its status, freeing
// the fault for re-assignment.
func (m *Manager) Unassign(ctx context.Context, actorID, faultID, expectedVersion int64) (*database.Fault, error) {
	fault, err := m.getVersioned(ctx, faultID, expectedVersion)
	if err != nil {
		return nil, err
	}

	fault.AssignedTo = nil
	if err := m.faults.Update(ctx, fault); err != nil {
		return nil, err
	}

	m.auditor.Record(ctx, actorID, "fault.unassign", "fault", fault.ID, "assignee cleared")
	return fault, nil
}

// TransitionStatus moves a fault along an allowed edge of the state machine,
// applying the timestamp and component-synchronization side effects the
// target state implies.
func (m *Manager) TransitionStatus(ctx context.Context, actorID, faultID int64, newStatus database.FaultStatus, resolutionNotes *string, expectedVersion int64) (*database.Fault, error) {
	if !database.ValidFaultStatus(newStatus) {
		return nil, opserr.New(opserr.KindValidation, "unknown status %q", newStatus)
	}

	fault, err := m.getVersioned(ctx, faultID, expectedVersion)
	if err != nil {
		return nil, err
	}

	from := fault.Status
	if !CanTransition(from, newStatus) {
		m.metrics.TransitionRejections.Inc()
		return nil, opserr.New(opserr.KindInvalidTransition,
			"cannot transition fault %d from %s to %s", faultID, from, newStatus)
	}

	switch newStatus {
	case database.FaultInProgress:
		m.enterInProgress(fault)
	case database.FaultOpen:
		// A regression starts a fresh episode: the next resolution recomputes
		// its own timestamps.
		fault.Status = database.FaultOpen
		fault.ResolvedAt = nil
		fault.ResponseTimeMinutes = nil
	case database.FaultResolved:
		m.enterResolved(fault)
	default:
		fault.Status = newStatus
	}

	if resolutionNotes != nil && *resolutionNotes != "" {
		fault.ResolutionNotes = resolutionNotes
	}

	if err := m.faults.Update(ctx, fault); err != nil {
		return nil, err
	}
	m.metrics.FaultTransitions.WithLabelValues(string(from), string(newStatus)).Inc()

	if (newStatus == database.FaultResolved || newStatus == database.FaultClosed) && fault.ComponentID != nil {
		m.maybeReactivateComponent(ctx, actorID, fault)
	}

	m.notifier.NotifyStatusChange(ctx, fault.ReportedBy, actorID, fault.ID, from, newStatus)
	m.auditor.Record(ctx, actorID, "fault.transition", "fault", fault.ID,
		fmt.Sprintf("status %s -> %s", from, newStatus))
	return fault, nil
}

// Schedule sets the planned work timestamp without changing status.
func (m *Manager) Schedule(ctx context.Context, actorID, faultID int64, scheduledFor time.Time, expectedVersion int64) (*database.Fault, error) {
	if scheduledFor.IsZero() {
		return nil, opserr.New(opserr.KindValidation, "scheduled_for is required")
	}

	fault, err := m.getVersioned(ctx, faultID, expectedVersion)
	if err != nil {
		return nil, err
	}

	fault.ScheduledFor = &scheduledFor
	if err := m.faults.Update(ctx, fault); err != nil {
		return nil, err
	}

	m.auditor.Record(ctx, actorID, "fault.schedule", "fault", fault.ID,
		fmt.Sprintf("scheduled for %s", scheduledFor.Format(time.RFC3339)))
	return fault, nil
}

// GetByID retrieves a single fault.
func (m *Manager) GetByID(ctx context.Context, faultID int64) (*database.Fault, error) {
	return m.faults.GetByID(ctx, faultID)
}

// List retrieves faults with filtering and pagination.
func (m *Manager) List(ctx context.Context, filter database.Filter) ([]*database.Fault, int, error) {
	return m.faults.List(ctx, filter)
}

func (m *Manager) getVersioned(ctx context.Context, faultID, expectedVersion int64) (*database.Fault, error) {
	fault, err := m.faults.GetByID(ctx, faultID)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && fault.Version != expectedVersion {
		return nil, opserr.New(opserr.KindConflict,
			"fault %d is at version %d, request expected %d", faultID, fault.Version, expectedVersion)
	}
	return fault, nil
}

func (m *Manager) enterInProgress(fault *database.Fault) {
	fault.Status = database.FaultInProgress
	if fault.StartedAt == nil {
		now := m.now()
		fault.StartedAt = &now
	}
}

func (m *Manager) enterResolved(fault *database.Fault) {
	fault.Status = database.FaultResolved
	if fault.ResolvedAt == nil {
		now := m.now()
		fault.ResolvedAt = &now
		minutes := int64(math.Round(now.Sub(fault.ReportedAt).Minutes()))
		if minutes < 0 {
			minutes = 0
		}
		fault.ResponseTimeMinutes = &minutes
	}
}

// maybeReactivateComponent restores a faulty component to active once no
// other open, pending or in-progress fault still references it.
func (m *Manager) maybeReactivateComponent(ctx context.Context, actorID int64, fault *database.Fault) {
	componentID := *fault.ComponentID

	component, err := m.components.GetByID(ctx, componentID)
	if err != nil {
		m.logger.Error("Failed to load component for reactivation check",
			"fault_id", fault.ID, "component_id", componentID, "error", err)
		return
	}
	if component.Status != database.ComponentFaulty {
		return
	}

	remaining, err := m.faults.CountActiveForComponent(ctx, componentID, fault.ID)
	if err != nil {
		m.logger.Error("Failed to count remaining faults for component",
			"fault_id", fault.ID, "component_id", componentID, "error", err)
		return
	}
	if remaining > 0 {
		return
	}

	if err := m.sync.MarkActive(ctx, actorID, componentID); err != nil {
		m.logger.Error("Failed to reactivate component",
			"fault_id", fault.ID, "component_id", componentID, "error", err)
	}
}
