package lifecycle

import "github.com/gridops/netops-engine/internal/database"

// allowedTransitions is the complete edge set of the fault state machine.
// Closed is terminal; Resolved can regress to Open when a reporter disputes
// the fix.
var allowedTransitions = map[database.FaultStatus][]database.FaultStatus{
	database.FaultOpen:       {database.FaultInProgress, database.FaultPending},
	database.FaultPending:    {database.FaultInProgress},
	database.FaultInProgress: {database.FaultResolved, database.FaultOpen},
	database.FaultResolved:   {database.FaultClosed, database.FaultOpen},
	database.FaultClosed:     {},
}

// CanTransition reports whether the edge from -> to is in the allowed set.
func CanTransition(from, to database.FaultStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedFrom returns the statuses reachable from the given status.
func AllowedFrom(from database.FaultStatus) []database.FaultStatus {
	return allowedTransitions[from]
}
