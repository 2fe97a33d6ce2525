// Package syncer pushes the kiosk's local queue to the collector and shrinks
// the queue to whatever the collector did not acknowledge.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
	"github.com/WilliamAziza/Sign-In-App/pkg/metrics"
)

const (
	maxResponseBytes = 1 << 20
	maxReasonBytes   = 4 << 10
)

// Store is the slice of the local queue the sync client needs.
type Store interface {
	ReadAll(ctx context.Context) []models.AttendanceRecord
	Reconcile(ctx context.Context, accepted map[string]struct{}) (int, error)
}

// Client submits the whole queue as one batch. At most one Sync runs at a
// time per client.
type Client struct {
	mu       sync.Mutex
	store    Store
	http     *http.Client
	endpoint string
	logger   *slog.Logger
}

// NewClient builds a sync client posting to endpoint. A nil httpClient means
// http.DefaultClient. Any request deadline comes from httpClient.Timeout or
// the ctx passed to Sync; a hung request only ever blocks the sync phase.
func NewClient(store Store, httpClient *http.Client, endpoint string, l *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		store:    store,
		http:     httpClient,
		endpoint: endpoint,
		logger:   l,
	}
}

// Sync runs read queue -> submit -> reconcile as one critical section.
func (c *Client) Sync(ctx context.Context) (out Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	var batch int

	defer func() {
		metrics.SyncOutcomes.WithLabelValues(out.Kind.String()).Inc()
		metrics.SyncDuration.Observe(time.Since(start).Seconds())

		if batch > 0 {
			c.logger.Info("Sync cycle telemetry",
				"outcome", out.Kind.String(),
				"batch", batch,
				"accepted", out.Accepted,
				"status", out.StatusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	}()

	records := c.store.ReadAll(ctx)
	batch = len(records)
	if batch == 0 {
		return Outcome{Kind: NothingToSync}
	}

	body, err := json.Marshal(records)
	if err != nil {
		return Outcome{Kind: PartialFailure, Reason: fmt.Sprintf("encode queue: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: NetworkFailure, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Collector unreachable, queue left for next attempt", "error", err, "batch", batch)
		return Outcome{Kind: NetworkFailure, Reason: err.Error()}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Collector rejected batch", "status", resp.StatusCode, "batch", batch)
		return Outcome{Kind: ServerRejected, StatusCode: resp.StatusCode, Reason: reasonText(raw)}
	}
	if readErr != nil {
		return Outcome{Kind: NetworkFailure, Reason: fmt.Sprintf("read acknowledgment: %v", readErr)}
	}

	var ack models.SyncAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		c.logger.Error("Collector sent an unreadable acknowledgment", "error", err)
		return Outcome{Kind: PartialFailure, Reason: "malformed acknowledgment"}
	}
	if !ack.Success {
		reason := ack.Message
		if reason == "" {
			reason = "collector reported failure"
		}
		return Outcome{Kind: PartialFailure, Reason: reason}
	}

	accepted := make(map[string]struct{}, len(ack.SyncedIDs))
	for _, id := range ack.SyncedIDs {
		if id != "" {
			accepted[string(id)] = struct{}{}
		}
	}
	if len(accepted) == 0 {
		return Outcome{Kind: Synced}
	}

	removed, err := c.store.Reconcile(ctx, accepted)
	if err != nil {
		// The collector deduplicates by id, so resubmitting these later is safe.
		c.logger.Error("Acknowledged records could not be removed from the local queue", "error", err, "acknowledged", len(accepted))
		return Outcome{Kind: PartialFailure, Reason: "acknowledged but local queue could not be updated"}
	}

	metrics.RecordsAcknowledged.Add(float64(removed))
	return Outcome{Kind: Synced, Accepted: removed}
}

func reasonText(raw []byte) string {
	if len(raw) > maxReasonBytes {
		raw = raw[:maxReasonBytes]
	}
	return strings.TrimSpace(string(raw))
}
