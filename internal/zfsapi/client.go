// Package zfsapi is the JSON-RPC client for the storage-control API that
// performs the actual snapshot and replication work.
package zfsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"zback/internal/logger"
	"zback/internal/model"
	"zback/internal/retention"

	"go.uber.org/zap"
)

const healthTimeout = 5 * time.Second

type Client struct {
	url string
	hc  *http.Client
}

// NewClient creates a client for the JSON-RPC endpoint at url. Every call
// is bounded by timeout.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url: strings.TrimRight(url, "/"),
		hc: &http.Client{
			Timeout: timeout,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	if params == nil {
		params = map[string]any{}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, method, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status %d", ErrUnavailable, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: %s: invalid response: %v", ErrUnavailable, method, err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%w: %s: invalid result: %v", ErrUnavailable, method, err)
		}
	}

	return nil
}

// ListSnapshots returns the snapshot names of a dataset in creation order.
func (c *Client) ListSnapshots(ctx context.Context, dataset string) ([]string, error) {
	var result struct {
		Snapshots []string `json:"snapshots"`
	}

	err := c.call(ctx, "snapshot_list", map[string]any{"dataset": dataset}, &result)
	if err != nil {
		return nil, err
	}

	return result.Snapshots, nil
}

// ListHolds returns every snapshot of the dataset that carries holds, in
// snapshot listing order. A hold query failing for a single snapshot skips
// that snapshot only.
func (c *Client) ListHolds(ctx context.Context, dataset string) ([]model.SnapshotHolds, error) {
	snapshots, err := c.ListSnapshots(ctx, dataset)
	if err != nil {
		return nil, err
	}

	var holds []model.SnapshotHolds
	for _, snap := range snapshots {
		var result struct {
			Holds []string `json:"holds"`
		}

		err := c.call(ctx, "snapshot_holds_list", map[string]any{
			"dataset":  dataset,
			"snapshot": snap,
		}, &result)
		if err != nil {
			logger.Log.Debug("skipping holds for snapshot",
				zap.String("dataset", dataset),
				zap.String("snapshot", snap),
				zap.Error(err))
			continue
		}

		if len(result.Holds) > 0 {
			holds = append(holds, model.SnapshotHolds{Snapshot: snap, Tags: result.Holds})
		}
	}

	return holds, nil
}

func (c *Client) CreateSnapshot(ctx context.Context, dataset, name string, recursive bool) error {
	return c.call(ctx, "snapshot_create", map[string]any{
		"dataset":   dataset,
		"name":      name,
		"recursive": recursive,
	}, nil)
}

func (c *Client) ReleaseHold(ctx context.Context, dataset, snapshot, tag string, recursive bool) error {
	return c.call(ctx, "snapshot_release", map[string]any{
		"dataset":   dataset,
		"snapshot":  snapshot,
		"tag":       tag,
		"recursive": recursive,
	}, nil)
}

func (c *Client) DestroySnapshot(ctx context.Context, dataset, snapshot string, recursive bool) error {
	return c.call(ctx, "snapshot_destroy", map[string]any{
		"dataset":   dataset,
		"snapshot":  snapshot,
		"recursive": recursive,
	}, nil)
}

// PruneSnapshots removes snapshots exceeding each tier's keep count. Pruning
// is best-effort: a snapshot that fails to delete is logged and skipped, and
// the next cycle picks it up again.
func (c *Client) PruneSnapshots(ctx context.Context, dataset string, keep map[model.Tier]int) error {
	snapshots, err := c.ListSnapshots(ctx, dataset)
	if err != nil {
		return err
	}

	for _, snap := range retention.PrunePlan(snapshots, keep) {
		if err := c.DestroySnapshot(ctx, dataset, snap, false); err != nil {
			logger.Log.Warn("failed to destroy snapshot",
				zap.String("dataset", dataset),
				zap.String("snapshot", snap),
				zap.Error(err))
		}
	}

	return nil
}

// StartMigration starts an asynchronous replication and returns the task id.
// When no snapshot is named, the latest snapshot of the dataset is sent.
func (c *Client) StartMigration(ctx context.Context, req MigrationRequest) (string, error) {
	snap := req.Snapshot
	if snap == "" {
		snapshots, err := c.ListSnapshots(ctx, req.Dataset)
		if err != nil {
			return "", err
		}
		if len(snapshots) == 0 {
			return "", fmt.Errorf("no snapshots to send for %s", req.Dataset)
		}
		snap = snapshots[len(snapshots)-1]
	}

	destination := req.RemoteDataset
	if destination == "" {
		destination = req.Dataset
	}

	params := map[string]any{
		"source":      fmt.Sprintf("%s@%s", req.Dataset, snap),
		"destination": destination,
		"remote":      req.RemoteHost,
		"recursive":   req.Recursive,
	}
	if req.Compression != "" {
		params["compression"] = req.Compression
	}

	var result struct {
		TaskID string `json:"task_id"`
	}
	if err := c.call(ctx, "migration_create", params, &result); err != nil {
		return "", err
	}
	if result.TaskID == "" {
		return "", fmt.Errorf("migration_create returned no task id for %s", req.Dataset)
	}

	return result.TaskID, nil
}

func (c *Client) MigrationStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var status TaskStatus
	err := c.call(ctx, "migration_get", map[string]any{"task_id": taskID}, &status)
	if err != nil {
		return nil, err
	}

	return &status, nil
}

// HasRunningMigration reports whether the API already runs a migration for
// the dataset, regardless of who started it. This is what makes a restarted
// daemon pick up instead of double-starting.
func (c *Client) HasRunningMigration(ctx context.Context, dataset string) (bool, error) {
	var result struct {
		Tasks []struct {
			Status string `json:"status"`
			Params struct {
				Source string `json:"source"`
			} `json:"params"`
		} `json:"tasks"`
	}

	if err := c.call(ctx, "migration_list", nil, &result); err != nil {
		return false, err
	}

	for _, task := range result.Tasks {
		if task.Status != string(model.StatePending) && task.Status != string(model.StateRunning) {
			continue
		}

		source, _, found := strings.Cut(task.Params.Source, "@")
		if found && source == dataset {
			return true, nil
		}
	}

	return false, nil
}

// HealthCheck probes the API's health endpoint with a short timeout.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}
