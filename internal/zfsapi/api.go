package zfsapi

import (
	"context"
	"errors"
	"fmt"
	"zback/internal/model"
)

// ErrUnavailable marks transport-level failures: connection refused, request
// timeout, malformed response. Callers treat these as transient and retry on
// a later cycle.
var ErrUnavailable = errors.New("storage api unavailable")

// ErrNotFound marks references to objects the API no longer knows, typically
// a stale migration task id.
var ErrNotFound = errors.New("not found")

const codeNotFound = -32004

// RPCError is an error returned by the storage API itself.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	return target == ErrNotFound && e.Code == codeNotFound
}

// Progress reports transfer progress of a running migration.
type Progress struct {
	Percentage float64 `json:"percentage"`
	RateMbps   float64 `json:"rate_mbps"`
	ETASeconds int     `json:"eta_seconds"`
}

// TaskStatus is the remote view of one migration task.
type TaskStatus struct {
	Status   string    `json:"status"`
	Progress *Progress `json:"progress"`
}

// MigrationRequest describes a replication to start. Snapshot may be empty,
// in which case the latest snapshot of the dataset is sent.
type MigrationRequest struct {
	Dataset       string
	Snapshot      string
	RemoteHost    string
	RemoteDataset string
	Recursive     bool
	Compression   string
}

// API is the storage-control surface the orchestrator drives. The production
// implementation is Client; tests substitute fakes.
type API interface {
	ListSnapshots(ctx context.Context, dataset string) ([]string, error)
	ListHolds(ctx context.Context, dataset string) ([]model.SnapshotHolds, error)
	CreateSnapshot(ctx context.Context, dataset, name string, recursive bool) error
	ReleaseHold(ctx context.Context, dataset, snapshot, tag string, recursive bool) error
	DestroySnapshot(ctx context.Context, dataset, snapshot string, recursive bool) error
	PruneSnapshots(ctx context.Context, dataset string, retention map[model.Tier]int) error
	StartMigration(ctx context.Context, req MigrationRequest) (string, error)
	MigrationStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	HasRunningMigration(ctx context.Context, dataset string) (bool, error)
	HealthCheck(ctx context.Context) bool
}
