// Package handlers exposes the operations engine over HTTP.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridops/netops-engine/internal/config"
	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/inventory"
	"github.com/gridops/netops-engine/internal/kpi"
	"github.com/gridops/netops-engine/internal/lifecycle"
	"github.com/gridops/netops-engine/internal/maintenance"
	"github.com/gridops/netops-engine/internal/opserr"
	"github.com/gridops/netops-engine/internal/reqctx"
)

// HTTPHandler handles HTTP requests for the operations engine.
type HTTPHandler struct {
	config        *config.Config
	logger        *slog.Logger
	faults        *lifecycle.Manager
	ledger        *inventory.Ledger
	maintenance   *maintenance.Recorder
	aggregator    *kpi.Aggregator
	notifications *database.NotificationRepository
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	cfg *config.Config,
	logger *slog.Logger,
	faults *lifecycle.Manager,
	ledger *inventory.Ledger,
	recorder *maintenance.Recorder,
	aggregator *kpi.Aggregator,
	notifications *database.NotificationRepository,
) *HTTPHandler {
	return &HTTPHandler{
		config:        cfg,
		logger:        logger,
		faults:        faults,
		ledger:        ledger,
		maintenance:   recorder,
		aggregator:    aggregator,
		notifications: notifications,
	}
}

// RegisterRoutes registers HTTP routes.
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods("GET")

	faultRouter := router.PathPrefix("/faults").Subrouter()
	faultRouter.HandleFunc("", h.handleCreateFault).Methods("POST")
	faultRouter.HandleFunc("", h.handleListFaults).Methods("GET")
	faultRouter.HandleFunc("/{id}", h.handleGetFault).Methods("GET")
	faultRouter.HandleFunc("/{id}/assign", h.handleAssignFault).Methods("PUT")
	faultRouter.HandleFunc("/{id}/unassign", h.handleUnassignFault).Methods("PUT")
	faultRouter.HandleFunc("/{id}/status", h.handleTransitionFault).Methods("PUT")
	faultRouter.HandleFunc("/{id}/schedule", h.handleScheduleFault).Methods("PUT")

	maintenanceRouter := router.PathPrefix("/maintenance").Subrouter()
	maintenanceRouter.HandleFunc("", h.handleRecordMaintenance).Methods("POST")
	maintenanceRouter.HandleFunc("", h.handleMaintenanceHistory).Methods("GET")

	inventoryRouter := router.PathPrefix("/inventory").Subrouter()
	inventoryRouter.HandleFunc("", h.handleListInventory).Methods("GET")
	inventoryRouter.HandleFunc("/issue", h.handleIssueInventory).Methods("POST")
	inventoryRouter.HandleFunc("/{id}", h.handleGetInventoryItem).Methods("GET")
	inventoryRouter.HandleFunc("/{id}/use", h.handleUseInventory).Methods("POST")
	inventoryRouter.HandleFunc("/{id}/restock", h.handleRestockInventory).Methods("POST")

	router.HandleFunc("/metrics/kpi", h.handleKPISummary).Methods("GET")

	notificationRouter := router.PathPrefix("/notifications").Subrouter()
	notificationRouter.HandleFunc("", h.handleListNotifications).Methods("GET")
	notificationRouter.HandleFunc("/{id}/read", h.handleMarkNotificationRead).Methods("PUT")
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "netops-engine",
	}

	h.writeJSON(w, http.StatusOK, health)
}

// Fault Handlers

func (h *HTTPHandler) handleCreateFault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ComponentID *int64 `json:"component_id"`
		Title       string `json:"title"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fault, err := h.faults.Create(r.Context(), reqctx.ActorID(r.Context()), lifecycle.CreateFaultInput{
		ComponentID: req.ComponentID,
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
		Priority:    database.FaultPriority(req.Priority),
	})
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, fault)
}

func (h *HTTPHandler) handleListFaults(w http.ResponseWriter, r *http.Request) {
	filter := h.parseFaultFilter(r)

	faults, total, err := h.faults.List(r.Context(), filter)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	response := map[string]interface{}{
		"faults":      faults,
		"total_count": total,
		"page_size":   filter.Limit,
		"offset":      filter.Offset,
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *HTTPHandler) handleGetFault(w http.ResponseWriter, r *http.Request) {
	faultID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	fault, err := h.faults.GetByID(r.Context(), faultID)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, fault)
}

func (h *HTTPHandler) handleAssignFault(w http.ResponseWriter, r *http.Request) {
	faultID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		TechnicianID int64 `json:"technician_id"`
		Version      int64 `json:"version"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TechnicianID <= 0 {
		h.writeError(w, http.StatusBadRequest, "technician_id is required")
		return
	}

	fault, err := h.faults.Assign(r.Context(), reqctx.ActorID(r.Context()), faultID, req.TechnicianID, req.Version)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, fault)
}

func (h *HTTPHandler) handleUnassignFault(w http.ResponseWriter, r *http.Request) {
	faultID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Version int64 `json:"version"`
	}
	// An empty body is fine here; unassign has no required fields.
	_ = json.NewDecoder(r.Body).Decode(&req)

	fault, err := h.faults.Unassign(r.Context(), reqctx.ActorID(r.Context()), faultID, req.Version)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, fault)
}

func (h *HTTPHandler) handleTransitionFault(w http.ResponseWriter, r *http.Request) {
	faultID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Status          string  `json:"status"`
		ResolutionNotes *string `json:"resolution_notes"`
		Version         int64   `json:"version"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status == "" {
		h.writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	fault, err := h.faults.TransitionStatus(r.Context(), reqctx.ActorID(r.Context()), faultID,
		database.FaultStatus(req.Status), req.ResolutionNotes, req.Version)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, fault)
}

func (h *HTTPHandler) handleScheduleFault(w http.ResponseWriter, r *http.Request) {
	faultID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		ScheduledFor time.Time `json:"scheduled_for"`
		Version      int64     `json:"version"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fault, err := h.faults.Schedule(r.Context(), reqctx.ActorID(r.Context()), faultID, req.ScheduledFor, req.Version)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, fault)
}

// Maintenance Handlers

func (h *HTTPHandler) handleRecordMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenance.RecordInput

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.maintenance.Record(r.Context(), reqctx.ActorID(r.Context()), req)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	response := map[string]interface{}{
		"log":   result.Log,
		"parts": result.Outcomes,
	}

	h.writeJSON(w, http.StatusCreated, response)
}

func (h *HTTPHandler) handleMaintenanceHistory(w http.ResponseWriter, r *http.Request) {
	componentID, err := strconv.ParseInt(r.URL.Query().Get("component_id"), 10, 64)
	if err != nil || componentID <= 0 {
		h.writeError(w, http.StatusBadRequest, "component_id query parameter is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	logs, err := h.maintenance.History(r.Context(), componentID, limit)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"maintenance_logs": logs})
}

// Inventory Handlers

func (h *HTTPHandler) handleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.ledger.List(r.Context())
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *HTTPHandler) handleGetInventoryItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	item, err := h.ledger.GetItem(r.Context(), itemID)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

func (h *HTTPHandler) handleUseInventory(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Quantity int64  `json:"quantity"`
		Reason   string `json:"reason"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.ledger.Debit(r.Context(), reqctx.ActorID(r.Context()), itemID, req.Quantity, req.Reason)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleIssueInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID       int64 `json:"item_id"`
		TechnicianID int64 `json:"technician_id"`
		Quantity     int64 `json:"quantity"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ItemID <= 0 {
		h.writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}
	if req.TechnicianID <= 0 {
		h.writeError(w, http.StatusBadRequest, "technician_id is required")
		return
	}

	reason := fmt.Sprintf("issued to user %d", req.TechnicianID)
	result, err := h.ledger.Debit(r.Context(), reqctx.ActorID(r.Context()), req.ItemID, req.Quantity, reason)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleRestockInventory(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Quantity int64  `json:"quantity"`
		Reason   string `json:"reason"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.ledger.Credit(r.Context(), reqctx.ActorID(r.Context()), itemID, req.Quantity, req.Reason)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// KPI Handler

func (h *HTTPHandler) handleKPISummary(w http.ResponseWriter, r *http.Request) {
	windowDays, err := kpi.ParseWindow(
		r.URL.Query().Get("time_range"),
		int64(h.config.KPI.DefaultWindowDays),
		int64(h.config.KPI.MaxWindowDays))
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	summary, err := h.aggregator.Summarize(r.Context(), windowDays)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// Notification Handlers

func (h *HTTPHandler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	actorID := reqctx.ActorID(r.Context())
	if actorID == 0 {
		h.writeError(w, http.StatusBadRequest, "X-Actor-ID header is required")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	notifications, err := h.notifications.ListForUser(r.Context(), actorID, unreadOnly, limit)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
}

func (h *HTTPHandler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	actorID := reqctx.ActorID(r.Context())
	if actorID == 0 {
		h.writeError(w, http.StatusBadRequest, "X-Actor-ID header is required")
		return
	}

	notificationID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), notificationID, actorID); err != nil {
		h.writeOpError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Helper methods

func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid id in path")
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) parseFaultFilter(r *http.Request) database.Filter {
	filter := database.Filter{}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			filter.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			filter.Offset = o
		}
	}
	filter.Status = r.URL.Query().Get("status")
	filter.Priority = r.URL.Query().Get("priority")
	if componentID := r.URL.Query().Get("component_id"); componentID != "" {
		if id, err := strconv.ParseInt(componentID, 10, 64); err == nil {
			filter.ComponentID = id
		}
	}
	if assignedTo := r.URL.Query().Get("assigned_to"); assignedTo != "" {
		if id, err := strconv.ParseInt(assignedTo, 10, 64); err == nil {
			filter.AssignedTo = id
		}
	}

	return filter
}

// writeOpError maps kinded operation errors to HTTP status codes.
func (h *HTTPHandler) writeOpError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch opserr.KindOf(err) {
	case opserr.KindValidation, opserr.KindInvalidTransition, opserr.KindInsufficientStock:
		status = http.StatusBadRequest
	case opserr.KindNotFound:
		status = http.StatusNotFound
	case opserr.KindConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", reqctx.RequestID(r.Context()), "error", err)
		h.writeError(w, status, "Internal server error")
		return
	}

	h.writeError(w, status, err.Error())
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
