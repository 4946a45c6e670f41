package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/gridops/netops-engine/internal/config"
)

// Connect establishes a database connection.
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// RunMigrations runs database migrations.
func RunMigrations(cfg config.DatabaseConfig) error {
	db, err := sql.Open("postgres", dsn(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func dsn(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Name, cfg.SSLMode,
	)
}

// BaseRepository carries the shared database handle.
type BaseRepository struct {
	db *sqlx.DB
}

// Transaction executes a function within a database transaction.
func (r *BaseRepository) Transaction(fn func(*sqlx.Tx) error) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}

// ComponentStatus is the lifecycle state of a network component.
type ComponentStatus string

const (
	ComponentActive      ComponentStatus = "active"
	ComponentInactive    ComponentStatus = "inactive"
	ComponentMaintenance ComponentStatus = "maintenance"
	ComponentFaulty      ComponentStatus = "faulty"
)

// FaultStatus is the lifecycle state of a fault ticket.
type FaultStatus string

const (
	FaultOpen       FaultStatus = "open"
	FaultPending    FaultStatus = "pending"
	FaultInProgress FaultStatus = "in_progress"
	FaultResolved   FaultStatus = "resolved"
	FaultClosed     FaultStatus = "closed"
)

// FaultPriority is the reported severity of a fault.
type FaultPriority string

const (
	PriorityCritical FaultPriority = "critical"
	PriorityHigh     FaultPriority = "high"
	PriorityMedium   FaultPriority = "medium"
	PriorityLow      FaultPriority = "low"
)

// ValidFaultStatus reports whether s names a known fault status.
func ValidFaultStatus(s FaultStatus) bool {
	switch s {
	case FaultOpen, FaultPending, FaultInProgress, FaultResolved, FaultClosed:
		return true
	}
	return false
}

// ValidFaultPriority reports whether p names a known priority.
func ValidFaultPriority(p FaultPriority) bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Role is a user role as injected by the upstream gateway.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleViewer     Role = "viewer"
)

// Component represents a managed piece of network infrastructure.
type Component struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	ComponentType string          `db:"component_type" json:"component_type"`
	Status        ComponentStatus `db:"status" json:"status"`
	Location      string          `db:"location" json:"location"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Fault represents a reported issue tracked through a bounded lifecycle.
type Fault struct {
	ID                  int64         `db:"id" json:"id"`
	ComponentID         *int64        `db:"component_id" json:"component_id,omitempty"`
	ReportedBy          int64         `db:"reported_by" json:"reported_by"`
	AssignedTo          *int64        `db:"assigned_to" json:"assigned_to,omitempty"`
	Title               string        `db:"title" json:"title"`
	Category            string        `db:"category" json:"category"`
	Description         string        `db:"description" json:"description"`
	Priority            FaultPriority `db:"priority" json:"priority"`
	Status              FaultStatus   `db:"status" json:"status"`
	ResolutionNotes     *string       `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ReportedAt          time.Time     `db:"reported_at" json:"reported_at"`
	StartedAt           *time.Time    `db:"started_at" json:"started_at,omitempty"`
	ResolvedAt          *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	ScheduledFor        *time.Time    `db:"scheduled_for" json:"scheduled_for,omitempty"`
	ResponseTimeMinutes *int64        `db:"response_time_minutes" json:"response_time_minutes,omitempty"`
	Version             int64         `db:"version" json:"version"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updated_at"`
}

// MaintenanceLog represents a completed maintenance action on a component.
type MaintenanceLog struct {
	ID              int64     `db:"id" json:"id"`
	ComponentID     int64     `db:"component_id" json:"component_id"`
	TechnicianID    int64     `db:"technician_id" json:"technician_id"`
	ActionTaken     string    `db:"action_taken" json:"action_taken"`
	Result          string    `db:"result" json:"result"`
	DurationMinutes int64     `db:"duration_minutes" json:"duration_minutes"`
	PerformedAt     time.Time `db:"performed_at" json:"performed_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// InventoryItem represents a consumable stock item.
type InventoryItem struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	Quantity  int64     `db:"quantity" json:"quantity"`
	MinLevel  int64     `db:"min_level" json:"min_level"`
	UnitCost  float64   `db:"unit_cost" json:"unit_cost"`
	Location  string    `db:"location" json:"location"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StockMovement is the append-only record justifying every quantity change.
type StockMovement struct {
	ID               int64     `db:"id" json:"id"`
	ItemID           int64     `db:"item_id" json:"item_id"`
	ActorID          int64     `db:"actor_id" json:"actor_id"`
	Delta            int64     `db:"delta" json:"delta"`
	Reason           string    `db:"reason" json:"reason"`
	MaintenanceLogID *int64    `db:"maintenance_log_id" json:"maintenance_log_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Notification is a per-user notification row.
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	NotifType string    `db:"notif_type" json:"notif_type"`
	Message   string    `db:"message" json:"message"`
	Link      string    `db:"link" json:"link"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditEntry is an append-only activity record.
type AuditEntry struct {
	ID         int64     `db:"id" json:"id"`
	ActorID    int64     `db:"actor_id" json:"actor_id"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   int64     `db:"entity_id" json:"entity_id"`
	Details    string    `db:"details" json:"details"`
	RequestID  string    `db:"request_id" json:"request_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// User is the collaborator-owned identity entity; the core only reads it.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Filter represents common list filtering options.
type Filter struct {
	Limit       int
	Offset      int
	Status      string
	Priority    string
	ComponentID int64
	AssignedTo  int64
}

// TechnicianPerformance aggregates per-technician fault handling over a window.
type TechnicianPerformance struct {
	TechnicianID         int64    `db:"technician_id" json:"technician_id"`
	TechnicianName       string   `db:"technician_name" json:"technician_name"`
	AssignedCount        int64    `db:"assigned_count" json:"assigned_count"`
	ResolvedCount        int64    `db:"resolved_count" json:"resolved_count"`
	AvgResolutionMinutes *float64 `db:"avg_resolution_minutes" json:"avg_resolution_minutes,omitempty"`
}

// ResolutionStats aggregates resolved-fault response times over a window.
type ResolutionStats struct {
	ResolvedCount      int64   `db:"resolved_count"`
	TotalResponseMins  int64   `db:"total_response_mins"`
	AvgResponseMinutes float64 `db:"avg_response_minutes"`
}
