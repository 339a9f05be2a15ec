// Package workload generates command traffic against a respkv client, one
// session per worker.
package workload

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/pior/respkv"
)

// Workload represents a pattern of commands to run on a session
type Workload interface {
	// Name returns the workload identifier
	Name() string

	// Description returns a human-readable description
	Description() string

	// Execute runs a single operation on the worker's session.
	// This is called concurrently by multiple workers, each with its own session.
	Execute(ctx context.Context, s *respkv.Session, workerID int) error
}

// Runner executes a workload with specified concurrency
type Runner struct {
	client      *respkv.Client
	workload    Workload
	concurrency int

	// OnResult, if set, is called after each operation.
	OnResult func(err error)

	opsSuccess atomic.Int64
	opsFailed  atomic.Int64
}

// NewRunner creates a workload runner
func NewRunner(client *respkv.Client, workload Workload, concurrency int) *Runner {
	return &Runner{
		client:      client,
		workload:    workload,
		concurrency: concurrency,
	}
}

// Run runs the workload until ctx is done. Operation failures are counted,
// not returned: the session recovers its connection on the next operation.
func (r *Runner) Run(ctx context.Context) error {
	err := r.client.Run(ctx, r.concurrency, func(ctx context.Context, s *respkv.Session) error {
		workerID := int(s.ID())
		for ctx.Err() == nil {
			err := r.workload.Execute(ctx, s, workerID)
			if err != nil {
				r.opsFailed.Add(1)
			} else {
				r.opsSuccess.Add(1)
			}
			if r.OnResult != nil {
				r.OnResult(err)
			}
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Stats returns current operation statistics
func (r *Runner) Stats() Stats {
	success := r.opsSuccess.Load()
	failed := r.opsFailed.Load()
	total := success + failed

	var errorRate float64
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return Stats{
		TotalOps:   total,
		SuccessOps: success,
		FailedOps:  failed,
		ErrorRate:  errorRate,
	}
}

// Stats holds workload execution statistics
type Stats struct {
	TotalOps   int64
	SuccessOps int64
	FailedOps  int64
	ErrorRate  float64
}

func (s Stats) String() string {
	return fmt.Sprintf("Total: %d, Success: %d, Failed: %d, Error Rate: %.2f%%",
		s.TotalOps, s.SuccessOps, s.FailedOps, s.ErrorRate*100)
}

// Registry of available workloads
var registry = make(map[string]Workload)

// Register adds a workload to the registry
func Register(w Workload) {
	registry[w.Name()] = w
}

// Get retrieves a workload by name
func Get(name string) (Workload, error) {
	w, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("workload not found: %s", name)
	}
	return w, nil
}

// Names returns the names of all registered workloads, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
