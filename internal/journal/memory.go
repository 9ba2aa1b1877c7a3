package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemJournal is an in-memory Journal used when no database is configured and
// in tests. Entries do not survive a restart.
type MemJournal struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
}

// NewMemJournal returns an empty in-memory journal.
func NewMemJournal() *MemJournal {
	return &MemJournal{entries: make(map[uuid.UUID]*Entry)}
}

func (j *MemJournal) Record(_ context.Context, farmerID string, tokenID uint64, action, reason, txHash string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now().UTC()
	entry := &Entry{
		ID:        uuid.New(),
		FarmerID:  farmerID,
		TokenID:   tokenID,
		Action:    action,
		Reason:    reason,
		TxHash:    txHash,
		State:     StateBackendPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	j.entries[entry.ID] = entry
	copied := *entry
	return &copied, nil
}

func (j *MemJournal) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return j.setState(id, StateCompleted, "")
}

func (j *MemJournal) MarkReconcileRequired(_ context.Context, id uuid.UUID, detail string) error {
	return j.setState(id, StateReconcileRequired, detail)
}

func (j *MemJournal) setState(id uuid.UUID, state State, detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry, ok := j.entries[id]
	if !ok {
		return errors.Wrapf(ErrEntryNotFound, "id %s", id)
	}
	entry.State = state
	entry.FailureDetail = detail
	entry.UpdatedAt = time.Now().UTC()
	return nil
}

func (j *MemJournal) ListUnresolved(_ context.Context) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var unresolved []Entry
	for _, entry := range j.entries {
		if entry.State == StateBackendPending || entry.State == StateReconcileRequired {
			unresolved = append(unresolved, *entry)
		}
	}
	sort.Slice(unresolved, func(i, k int) bool {
		return unresolved[i].CreatedAt.Before(unresolved[k].CreatedAt)
	})
	return unresolved, nil
}

var _ Journal = (*MemJournal)(nil)
