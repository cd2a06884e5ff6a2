package inmemorystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/buildgrid/internal/nodestore"
)

// Store is an in-memory implementation of nodestore.Store.
//
// sync.Map fits the workload: every key is written once by the worker that
// finished the task and read after the run.
type Store struct {
	results sync.Map // Key: task path, Value: nodestore.Result
}

// New creates a new, empty in-memory result store.
func New() *Store {
	return &Store{}
}

var _ nodestore.Store = (*Store)(nil)

// SetResult records the outcome of a task.
func (s *Store) SetResult(ctx context.Context, r nodestore.Result) error {
	if r.Task == "" {
		return fmt.Errorf("result has no task id")
	}
	s.results.Store(r.Task, r)
	return nil
}

// GetResult retrieves the recorded outcome of a task.
func (s *Store) GetResult(ctx context.Context, id string) (nodestore.Result, bool, error) {
	v, ok := s.results.Load(id)
	if !ok {
		return nodestore.Result{}, false, nil
	}
	return v.(nodestore.Result), true, nil
}

// Results returns the recorded outcomes for ids in order.
func (s *Store) Results(ctx context.Context, ids []string) ([]nodestore.Result, error) {
	out := make([]nodestore.Result, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.results.Load(id); ok {
			out = append(out, v.(nodestore.Result))
		}
	}
	return out, nil
}
