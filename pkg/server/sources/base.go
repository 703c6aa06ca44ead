package sources

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
	"github.com/StrathCole/external-adapter-go/pkg/core/job"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
	"github.com/StrathCole/external-adapter-go/pkg/logging"
)

// BaseAdapter provides common functionality for all adapters: health tracking
// around job execution and ordered release of upstream resources.
type BaseAdapter struct {
	*job.Adapter

	adapterType AdapterType
	lastUpdate  time.Time
	updateMu    sync.RWMutex
	healthy     bool
	healthMu    sync.RWMutex
	closers     []func() error
	closeOnce   sync.Once
	closed      chan struct{}
	logger      *logging.Logger
}

// NewBaseAdapter wraps a job adapter.
func NewBaseAdapter(adapterType AdapterType, a *job.Adapter, logger *logging.Logger) *BaseAdapter {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &BaseAdapter{
		Adapter:     a,
		adapterType: adapterType,
		healthy:     true,
		closed:      make(chan struct{}),
		logger:      logger,
	}
}

// Type returns the adapter type
func (b *BaseAdapter) Type() AdapterType {
	return b.adapterType
}

// Execute runs the job and records whether the upstream answered.
func (b *BaseAdapter) Execute(ctx context.Context, req validator.Request) *envelope.Envelope {
	select {
	case <-b.closed:
		return envelope.Errored(validator.JobRunID(req.ID), &envelope.AdapterError{
			Kind:    "AdapterError",
			Status:  http.StatusServiceUnavailable,
			Message: b.Name(),
			Cause:   ErrAdapterClosed,
		})
	default:
	}

	env := b.Adapter.Execute(ctx, req)
	switch {
	case env.OK():
		b.SetHealthy(true)
		b.SetLastUpdate(time.Now())
	case env.StatusCode >= http.StatusInternalServerError:
		b.SetHealthy(false)
	}
	return env
}

// IsHealthy returns the health status
func (b *BaseAdapter) IsHealthy() bool {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.healthy
}

// SetHealthy sets the health status
func (b *BaseAdapter) SetHealthy(healthy bool) {
	b.healthMu.Lock()
	defer b.healthMu.Unlock()
	b.healthy = healthy
}

// LastUpdate returns the time of the last successful job
func (b *BaseAdapter) LastUpdate() time.Time {
	b.updateMu.RLock()
	defer b.updateMu.RUnlock()
	return b.lastUpdate
}

// SetLastUpdate sets the last update time
func (b *BaseAdapter) SetLastUpdate(t time.Time) {
	b.updateMu.Lock()
	defer b.updateMu.Unlock()
	b.lastUpdate = t
}

// OnClose registers a release function. Functions run in reverse registration order.
func (b *BaseAdapter) OnClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

// Close rejects further jobs and runs the registered release functions once.
func (b *BaseAdapter) Close() error {
	var errs []error
	b.closeOnce.Do(func() {
		close(b.closed)
		for i := len(b.closers) - 1; i >= 0; i-- {
			if err := b.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		b.logger.Info("Adapter closed", "adapter", b.Name())
	})
	return errors.Join(errs...)
}
