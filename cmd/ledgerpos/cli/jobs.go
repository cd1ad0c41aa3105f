package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/ledgerpos/ledgerpos/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	if strings.TrimSpace(redisAddr) == "" {
		return nil, errors.New("jobs cli: REDIS_ADDR is required")
	}
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerIntegrity enqueues an integrity check for each store.
func (c *JobsCLI) TriggerIntegrity(ctx context.Context, storeIDs ...string) ([]*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	if len(storeIDs) == 0 {
		return nil, errors.New("jobs cli: at least one store id is required")
	}
	infos := make([]*asynq.TaskInfo, 0, len(storeIDs))
	for _, id := range storeIDs {
		task, err := jobs.NewLedgerIntegrityTask(id)
		if err != nil {
			return infos, err
		}
		info, err := c.client.EnqueueContext(ctx, task)
		if err != nil {
			return infos, fmt.Errorf("jobs cli: enqueue %s: %w", id, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// Run dispatches `jobs integrity <store>...` and `jobs stats`.
func Run(ctx context.Context, redisAddr string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: ledgerpos jobs integrity <store>... | ledgerpos jobs stats")
	}
	c, err := NewJobsCLI(redisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	switch args[0] {
	case "integrity":
		infos, err := c.TriggerIntegrity(ctx, args[1:]...)
		for _, info := range infos {
			fmt.Fprintf(out, "enqueued %s %s\n", info.Type, info.ID)
		}
		return err
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("jobs cli: unknown command %q", args[0])
	}
}
