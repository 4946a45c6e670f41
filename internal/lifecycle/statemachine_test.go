package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gridops/netops-engine/internal/database"
)

func TestCanTransition(t *testing.T) {
	t.Run("Allowed Edges", func(t *testing.T) {
		allowed := [][2]database.FaultStatus{
			{database.FaultOpen, database.FaultInProgress},
			{database.FaultOpen, database.FaultPending},
			{database.FaultPending, database.FaultInProgress},
			{database.FaultInProgress, database.FaultResolved},
			{database.FaultInProgress, database.FaultOpen},
			{database.FaultResolved, database.FaultClosed},
			{database.FaultResolved, database.FaultOpen},
		}

		for _, edge := range allowed {
			assert.True(t, CanTransition(edge[0], edge[1]),
				"%s -> %s should be allowed", edge[0], edge[1])
		}
	})

	t.Run("Rejected Edges", func(t *testing.T) {
		rejected := [][2]database.FaultStatus{
			{database.FaultOpen, database.FaultResolved},
			{database.FaultOpen, database.FaultClosed},
			{database.FaultPending, database.FaultResolved},
			{database.FaultPending, database.FaultOpen},
			{database.FaultInProgress, database.FaultClosed},
			{database.FaultResolved, database.FaultInProgress},
			{database.FaultClosed, database.FaultOpen},
			{database.FaultClosed, database.FaultResolved},
		}

		for _, edge := range rejected {
			assert.False(t, CanTransition(edge[0], edge[1]),
				"%s -> %s should be rejected", edge[0], edge[1])
		}
	})

	t.Run("Closed Is Terminal", func(t *testing.T) {
		assert.Empty(t, AllowedFrom(database.FaultClosed))
	})

	t.Run("Self Transition Rejected", func(t *testing.T) {
		assert.False(t, CanTransition(database.FaultOpen, database.FaultOpen))
	})
}
