package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-pricing/internal/resilience"
)

// TypeTaxPoolRefresh rebuilds the cached tax pool of one tenant and country.
const TypeTaxPoolRefresh = "pricing:tax_pool_refresh"

// QueueName is the asynq queue pricing tasks run on.
const QueueName = "pricing"

// ErrRefreshPending reports that an identical refresh is already queued.
var ErrRefreshPending = errors.New("tax pool refresh already pending")

// RefreshPayload is the JSON payload of a TypeTaxPoolRefresh task.
type RefreshPayload struct {
	TenantID uuid.UUID `json:"tenantId"`
	Country  string    `json:"country"`
}

// NewTaxPoolRefreshTask builds a refresh task. Identical tasks are rejected by
// asynq for uniqueFor.
func NewTaxPoolRefreshTask(tenantID uuid.UUID, country string, uniqueFor time.Duration) (*asynq.Task, error) {
	if tenantID == uuid.Nil {
		return nil, errors.New("jobs: tenant id is required")
	}
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return nil, errors.New("jobs: country is required")
	}
	payload, err := json.Marshal(RefreshPayload{TenantID: tenantID, Country: country})
	if err != nil {
		return nil, err
	}
	if uniqueFor <= 0 {
		uniqueFor = time.Minute
	}
	return asynq.NewTask(TypeTaxPoolRefresh, payload,
		asynq.Queue(QueueName),
		asynq.Unique(uniqueFor),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// TaskEnqueuer is the part of *asynq.Client used here.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client enqueues pricing tasks.
type Client struct {
	Tasks     TaskEnqueuer
	UniqueFor time.Duration
}

// EnqueueTaxPoolRefresh schedules a refresh and returns the asynq task id.
func (c Client) EnqueueTaxPoolRefresh(ctx context.Context, tenantID uuid.UUID, country string) (string, error) {
	if c.Tasks == nil {
		return "", errors.New("jobs: task client not configured")
	}
	task, err := NewTaxPoolRefreshTask(tenantID, country, c.UniqueFor)
	if err != nil {
		return "", err
	}
	info, err := c.Tasks.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return "", fmt.Errorf("%w: %s/%s", ErrRefreshPending, tenantID, strings.ToUpper(country))
	}
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeTaxPoolRefresh, err)
	}
	return info.ID, nil
}

// RetryDelay spaces retries with exponential backoff and 20% jitter.
func RetryDelay(base time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		return resilience.Backoff(base, n+1, 0.2)
	}
}
