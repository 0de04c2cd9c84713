// Package cleanup removes the cart lines an accepted order was built from.
//
// Removing lines is a series of independent remote calls with no
// transaction around them, so each order gets a Saga with one Task per
// line. Task outcomes are recorded in a Log, which lets a Runner retry only
// the lines that failed.
package cleanup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the outcome of a single task.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrSagaNotFound is returned by a Log for an unknown saga.
var ErrSagaNotFound = errors.New("cleanup saga not found")

// Saga tracks the removal of the cart lines behind one order.
type Saga struct {
	ID        string
	OrderID   string
	ShopID    string
	UserEmail string
	Total     decimal.Decimal
	Tasks     []Task
	CreatedAt time.Time
}

// Task is the removal of one cart line.
type Task struct {
	ID        string
	SagaID    string
	LineID    string
	Status    Status
	Attempts  int
	LastError string
	UpdatedAt time.Time
}

// NewSaga creates a saga with a pending task for every line id.
func NewSaga(orderID, shopID, userEmail string, total decimal.Decimal, lineIDs []string) *Saga {
	now := time.Now().UTC()
	s := &Saga{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		ShopID:    shopID,
		UserEmail: userEmail,
		Total:     total,
		Tasks:     make([]Task, len(lineIDs)),
		CreatedAt: now,
	}
	for i, id := range lineIDs {
		s.Tasks[i] = Task{
			ID:        uuid.New().String(),
			SagaID:    s.ID,
			LineID:    id,
			Status:    StatusPending,
			UpdatedAt: now,
		}
	}
	return s
}

// Log persists sagas and task outcomes.
type Log interface {
	// Begin records a saga and all of its tasks.
	Begin(ctx context.Context, s *Saga) error
	// Complete marks a task done.
	Complete(ctx context.Context, taskID string) error
	// Fail marks a task failed and counts the attempt.
	Fail(ctx context.Context, taskID string, reason string) error
	// Retryable returns up to limit failed tasks with fewer than maxAttempts
	// attempts, oldest first.
	Retryable(ctx context.Context, maxAttempts, limit int) ([]Task, error)
	// Saga returns a recorded saga with its current task states.
	Saga(ctx context.Context, id string) (*Saga, error)
}

// Failure is a task that did not complete.
type Failure struct {
	TaskID string
	LineID string
	Err    error
}

// Report is the outcome of one Run or Retry pass.
type Report struct {
	SagaID string
	// Done lists the line ids that no longer exist upstream.
	Done   []string
	Failed []Failure
}

// FailedLines returns the ids of lines that are still present upstream.
func (r Report) FailedLines() []string {
	ids := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.LineID
	}
	return ids
}

// Err returns a *LinesError when any task failed.
func (r Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &LinesError{Lines: r.FailedLines(), First: r.Failed[0].Err}
}

// LinesError reports cart lines that could not be removed after an order
// was accepted.
type LinesError struct {
	Lines []string
	First error
}

func (e *LinesError) Error() string {
	return fmt.Sprintf("remove cart lines %s: %v", strings.Join(e.Lines, ", "), e.First)
}

func (e *LinesError) Unwrap() error {
	return e.First
}
