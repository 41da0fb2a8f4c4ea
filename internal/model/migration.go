package model

// MigrationState is the closed set of states a remote migration task moves
// through. Anything the API reports outside this set is mapped to StateError
// so every poll takes a defined transition.
type MigrationState string

const (
	StatePending   MigrationState = "pending"
	StateRunning   MigrationState = "running"
	StateCompleted MigrationState = "completed"
	StateFailed    MigrationState = "failed"
	StateCancelled MigrationState = "cancelled"
	// StateError is the local fallback for unknown statuses and poll failures.
	StateError MigrationState = "error"
)

func ParseMigrationState(s string) MigrationState {
	switch MigrationState(s) {
	case StatePending, StateRunning, StateCompleted, StateFailed, StateCancelled:
		return MigrationState(s)
	default:
		return StateError
	}
}

// Terminal reports whether the state ends local tracking of the task.
func (s MigrationState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateError:
		return true
	default:
		return false
	}
}
