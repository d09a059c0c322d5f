package runtime

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vinodismyname/sheetagent/config"
)

// ErrBusy indicates no request slot became free within AcquireRequestTimeout.
var ErrBusy = errors.New("runtime: concurrent request limit reached")

// Limits captures the concurrency guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRequests int
	MaxTables             int

	// Row bounds
	MaxCellsPerOp   int
	PreviewRowLimit int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRequests, maxTables int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxTables <= 0 {
		maxTables = config.DefaultMaxTables
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxTables:             maxTables,
		MaxCellsPerOp:         config.DefaultMaxCellsPerOp,
		PreviewRowLimit:       config.DefaultPreviewRowLimit,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// LimitsFromConfig derives Limits from a loaded configuration.
func LimitsFromConfig(cfg *config.Config) Limits {
	l := NewLimits(cfg.Runtime.MaxConcurrentRequests, cfg.Store.MaxTables)
	if cfg.Store.MaxCellsPerOp > 0 {
		l.MaxCellsPerOp = cfg.Store.MaxCellsPerOp
	}
	if cfg.Store.PreviewRows > 0 {
		l.PreviewRowLimit = cfg.Store.PreviewRows
	}
	if cfg.Runtime.OperationTimeout > 0 {
		l.OperationTimeout = cfg.Runtime.OperationTimeout
	}
	if cfg.Runtime.AcquireRequestTimeout > 0 {
		l.AcquireRequestTimeout = cfg.Runtime.AcquireRequestTimeout
	}
	return l
}

// Controller gates access to the table store. With the default limit of one
// request, tool calls run strictly one after another.
type Controller struct {
	limits           Limits
	requestSemaphore *semaphore.Weighted
}

// NewController constructs a Controller backed by a weighted semaphore.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		requestSemaphore: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
	}
}

// AcquireRequest reserves capacity for an incoming request.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// Do runs fn holding a request slot and bounded by OperationTimeout. It
// returns ErrBusy when no slot frees up within AcquireRequestTimeout.
func (c *Controller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	acquireCtx := ctx
	if c.limits.AcquireRequestTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, c.limits.AcquireRequestTimeout)
		defer cancel()
	}
	if err := c.AcquireRequest(acquireCtx); err != nil {
		return ErrBusy
	}
	defer c.ReleaseRequest()

	callCtx := ctx
	if c.limits.OperationTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.limits.OperationTimeout)
		defer cancel()
	}
	return fn(callCtx)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
