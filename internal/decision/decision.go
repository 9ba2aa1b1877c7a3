package decision

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ownafarm/ownafarm-gateway/internal/alerts"
	"github.com/ownafarm/ownafarm-gateway/internal/constants"
	"github.com/ownafarm/ownafarm-gateway/internal/journal"
)

var (
	// ErrMissingTokenID is returned before any chain interaction when a
	// farmer record has no minted invoice token to decide on.
	ErrMissingTokenID = errors.New("farmer has no invoice token id")

	// ErrDecisionInFlight is returned when a decision for the same token
	// is already running.
	ErrDecisionInFlight = errors.New("a decision for this invoice is already in progress")

	// ErrBackendOutOfSync is returned when the chain write confirmed but
	// the backend status update failed. The chain remains the source of
	// truth; the journal carries the repair work.
	ErrBackendOutOfSync = errors.New("chain updated but backend is out of sync")
)

// Phase is the lifecycle stage of an in-flight decision.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePending    Phase = "pending"
	PhaseConfirming Phase = "confirming"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

// Update is delivered to the observer on every phase change.
type Update struct {
	TokenID  uint64
	FarmerID string
	Action   string
	Phase    Phase
	TxHash   string
	Err      error
}

// Observer receives phase changes. May be nil.
type Observer func(Update)

// Request describes one approve or reject decision.
type Request struct {
	FarmerID string
	TokenID  *uint64
	Action   string
	Reason   string
}

// Result is returned when a decision fully lands on both chain and backend.
type Result struct {
	TokenID uint64
	Action  string
	TxHash  string
	EntryID string
}

// ChainWriter is the contract surface the service drives.
type ChainWriter interface {
	ApproveInvoice(ctx context.Context, tokenID *big.Int) (*types.Transaction, error)
	RejectInvoice(ctx context.Context, tokenID *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// BackendUpdater mirrors a confirmed chain decision to the registry backend.
type BackendUpdater interface {
	ApproveFarmer(ctx context.Context, farmerID string) error
	RejectFarmer(ctx context.Context, farmerID, reason string) error
}

// Service runs the two-phase decision flow: chain write first, backend update
// only after the transaction confirms.
type Service struct {
	chain    ChainWriter
	backend  BackendUpdater
	journal  journal.Journal
	notifier alerts.Notifier
	observer Observer
	log      *zap.Logger

	mu       sync.Mutex
	inFlight map[uint64]struct{}
}

// NewService wires the decision saga. notifier and observer may be nil.
func NewService(chain ChainWriter, backend BackendUpdater, j journal.Journal, notifier alerts.Notifier, observer Observer, log *zap.Logger) *Service {
	if notifier == nil {
		notifier = alerts.NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		chain:    chain,
		backend:  backend,
		journal:  j,
		notifier: notifier,
		observer: observer,
		log:      log,
		inFlight: make(map[uint64]struct{}),
	}
}

// Decide runs one approve or reject decision end to end. The chain write is
// never retried automatically: a failed or timed-out transaction surfaces to
// the caller, who re-reads chain state before trying again.
func (s *Service) Decide(ctx context.Context, req Request) (*Result, error) {
	if req.TokenID == nil {
		return nil, errors.Wrapf(ErrMissingTokenID, "farmer %s", req.FarmerID)
	}
	if req.Action != constants.ApproveAction && req.Action != constants.RejectAction {
		return nil, errors.Errorf("unknown decision action %q", req.Action)
	}
	tokenID := *req.TokenID

	if !s.acquire(tokenID) {
		return nil, errors.Wrapf(ErrDecisionInFlight, "token %d", tokenID)
	}
	defer s.release(tokenID)

	s.notify(Update{TokenID: tokenID, FarmerID: req.FarmerID, Action: req.Action, Phase: PhasePending})

	tx, err := s.submit(ctx, req.Action, tokenID)
	if err != nil {
		s.notify(Update{TokenID: tokenID, FarmerID: req.FarmerID, Action: req.Action, Phase: PhaseError, Err: err})
		return nil, err
	}
	txHash := tx.Hash().Hex()
	s.notify(Update{TokenID: tokenID, FarmerID: req.FarmerID, Action: req.Action, Phase: PhaseConfirming, TxHash: txHash})

	if _, err := s.chain.WaitMined(ctx, tx); err != nil {
		s.notify(Update{TokenID: tokenID, FarmerID: req.FarmerID, Action: req.Action, Phase: PhaseError, TxHash: txHash, Err: err})
		return nil, err
	}

	// The decision now exists on chain. Journal it before touching the
	// backend so a crash here still leaves a repair record.
	entry, err := s.journal.Record(ctx, req.FarmerID, tokenID, req.Action, req.Reason, txHash)
	if err != nil {
		// Journaling failed after the chain confirmed. Alert directly,
		// there is no entry for the reconciler to pick up.
		s.log.Error("failed to journal confirmed decision",
			zap.Error(err),
			zap.Uint64("token_id", tokenID),
			zap.String("tx_hash", txHash))
		outErr := errors.Wrapf(ErrBackendOutOfSync, "decision confirmed in tx %s but could not be journaled", txHash)
		s.notify(Update{TokenID: tokenID, FarmerID: req.FarmerID, Action: req.Action, Phase: PhaseError, TxHash: txHash, Err: outErr})
		return nil, outErr
	}

	if err := s.updateBackend(ctx, req); err != nil {
		detail := err.Error()
		if markErr := s.journal.MarkReconcileRequired(ctx, entry.ID, detail); markErr != nil {
			s.log.Error("failed to mark journal entry for reconcile", zap.Error(markErr), zap.String("entry_id", entry.ID.String()))
		}
		if alertErr := s.notifier.NotifyDivergence(ctx, alerts.Divergence{
			EntryID:  entry.ID,
			FarmerID: req.FarmerID,
			TokenID:  tokenID,
			Action:   req.Action,
			TxHash:   txHash,
			Detail:   detail,
		}); alertErr != nil {
			s.log.Error("failed to deliver divergence alert", zap.Error(alertErr), zap.String("entry_id", entry.ID.String()))
		}
		outErr := errors.Wrapf(ErrBackendOutOfSync, "tx %s confirmed, backend update failed: %s", txHash, detail)
		s.notify(Update{TokenID: tokenID, FarmerID: req.FarmerID, Action: req.Action, Phase: PhaseError, TxHash: txHash, Err: outErr})
		return nil, outErr
	}

	if err := s.journal.MarkCompleted(ctx, entry.ID); err != nil {
		s.log.Error("failed to mark journal entry completed", zap.Error(err), zap.String("entry_id", entry.ID.String()))
	}

	s.log.Info("decision completed",
		zap.Uint64("token_id", tokenID),
		zap.String("farmer_id", req.FarmerID),
		zap.String("action", req.Action),
		zap.String("tx_hash", txHash))
	s.notify(Update{TokenID: tokenID, FarmerID: req.FarmerID, Action: req.Action, Phase: PhaseSuccess, TxHash: txHash})

	return &Result{TokenID: tokenID, Action: req.Action, TxHash: txHash, EntryID: entry.ID.String()}, nil
}

func (s *Service) submit(ctx context.Context, action string, tokenID uint64) (*types.Transaction, error) {
	id := new(big.Int).SetUint64(tokenID)
	if action == constants.ApproveAction {
		return s.chain.ApproveInvoice(ctx, id)
	}
	return s.chain.RejectInvoice(ctx, id)
}

func (s *Service) updateBackend(ctx context.Context, req Request) error {
	if req.Action == constants.ApproveAction {
		return s.backend.ApproveFarmer(ctx, req.FarmerID)
	}
	return s.backend.RejectFarmer(ctx, req.FarmerID, req.Reason)
}

func (s *Service) acquire(tokenID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[tokenID]; busy {
		return false
	}
	s.inFlight[tokenID] = struct{}{}
	return true
}

func (s *Service) release(tokenID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, tokenID)
}

func (s *Service) notify(u Update) {
	if s.observer != nil {
		s.observer(u)
	}
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Attempted int
	Repaired  int
	Remaining int
}

// ReconcilePending replays unresolved journal entries against the backend.
// Each entry gets a short bounded retry; entries that still fail stay in
// reconcile_required state for the next pass.
func (s *Service) ReconcilePending(ctx context.Context) (*ReconcileReport, error) {
	entries, err := s.journal.ListUnresolved(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list unresolved decisions")
	}

	report := &ReconcileReport{Attempted: len(entries)}
	for _, entry := range entries {
		req := Request{FarmerID: entry.FarmerID, Action: entry.Action, Reason: entry.Reason}

		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(500*time.Millisecond),
			backoff.WithMaxInterval(10*time.Second),
		), 3), ctx)

		err := backoff.Retry(func() error {
			return s.updateBackend(ctx, req)
		}, policy)
		if err != nil {
			s.log.Warn("reconcile attempt failed",
				zap.Error(err),
				zap.String("entry_id", entry.ID.String()),
				zap.Uint64("token_id", entry.TokenID))
			if entry.State != journal.StateReconcileRequired {
				if markErr := s.journal.MarkReconcileRequired(ctx, entry.ID, err.Error()); markErr != nil {
					s.log.Error("failed to update journal state", zap.Error(markErr), zap.String("entry_id", entry.ID.String()))
				}
			}
			report.Remaining++
			continue
		}

		if err := s.journal.MarkCompleted(ctx, entry.ID); err != nil {
			s.log.Error("failed to mark reconciled entry completed", zap.Error(err), zap.String("entry_id", entry.ID.String()))
		}
		s.log.Info("reconciled out-of-sync decision",
			zap.String("entry_id", entry.ID.String()),
			zap.Uint64("token_id", entry.TokenID),
			zap.String("action", entry.Action))
		report.Repaired++
	}
	return report, nil
}
