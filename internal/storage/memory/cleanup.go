package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/cleanup"
)

// ErrTaskNotFound is returned for an unknown task id.
var ErrTaskNotFound = errors.New("cleanup task not found")

var _ cleanup.Log = (*CleanupLog)(nil)

// CleanupLog records cleanup sagas in memory.
type CleanupLog struct {
	mu    sync.Mutex
	sagas map[string]*cleanup.Saga
	tasks map[string]*cleanup.Task
}

// NewCleanupLog returns an empty CleanupLog.
func NewCleanupLog() *CleanupLog {
	return &CleanupLog{
		sagas: make(map[string]*cleanup.Saga),
		tasks: make(map[string]*cleanup.Task),
	}
}

func (l *CleanupLog) Begin(_ context.Context, s *cleanup.Saga) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := *s
	cp.Tasks = slices.Clone(s.Tasks)
	l.sagas[cp.ID] = &cp
	for i := range cp.Tasks {
		l.tasks[cp.Tasks[i].ID] = &cp.Tasks[i]
	}
	return nil
}

func (l *CleanupLog) Complete(_ context.Context, taskID string) error {
	return l.update(taskID, func(t *cleanup.Task) {
		t.Status = cleanup.StatusDone
	})
}

func (l *CleanupLog) Fail(_ context.Context, taskID string, reason string) error {
	return l.update(taskID, func(t *cleanup.Task) {
		t.Status = cleanup.StatusFailed
		t.Attempts++
		t.LastError = reason
	})
}

func (l *CleanupLog) update(taskID string, fn func(t *cleanup.Task)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	fn(t)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (l *CleanupLog) Retryable(_ context.Context, maxAttempts, limit int) ([]cleanup.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []cleanup.Task
	for _, t := range l.tasks {
		if t.Status == cleanup.StatusFailed && t.Attempts < maxAttempts {
			out = append(out, *t)
		}
	}
	slices.SortFunc(out, func(a, b cleanup.Task) int {
		return cmp.Or(a.UpdatedAt.Compare(b.UpdatedAt), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *CleanupLog) Saga(_ context.Context, id string) (*cleanup.Saga, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sagas[id]
	if !ok {
		return nil, cleanup.ErrSagaNotFound
	}
	cp := *s
	cp.Tasks = slices.Clone(s.Tasks)
	return &cp, nil
}
