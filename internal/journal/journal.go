package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// State tracks how far a recorded decision has progressed after its chain
// transaction confirmed.
type State string

const (
	// StateBackendPending means the chain write confirmed but the backend
	// has not yet acknowledged the matching status update.
	StateBackendPending State = "backend_pending"
	// StateCompleted means both the chain and the backend reflect the
	// decision.
	StateCompleted State = "completed"
	// StateReconcileRequired means the backend update failed after the
	// chain write confirmed and an operator or the reconciler must repair
	// the divergence.
	StateReconcileRequired State = "reconcile_required"
)

// Entry is one journaled decision.
type Entry struct {
	ID            uuid.UUID
	FarmerID      string
	TokenID       uint64
	Action        string
	Reason        string
	TxHash        string
	State         State
	FailureDetail string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ErrEntryNotFound is returned when an entry id does not exist.
var ErrEntryNotFound = errors.New("journal entry not found")

// Journal persists decision progress so a crash between the chain write and
// the backend update never loses the fact that the two may diverge.
type Journal interface {
	// Record stores a new entry in backend_pending state and returns it.
	Record(ctx context.Context, farmerID string, tokenID uint64, action, reason, txHash string) (*Entry, error)
	// MarkCompleted transitions an entry to completed.
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	// MarkReconcileRequired transitions an entry to reconcile_required
	// with the failure detail that caused it.
	MarkReconcileRequired(ctx context.Context, id uuid.UUID, detail string) error
	// ListUnresolved returns entries still in backend_pending or
	// reconcile_required state, oldest first.
	ListUnresolved(ctx context.Context) ([]Entry, error)
}
