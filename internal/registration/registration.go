package registration

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ownafarm/ownafarm-gateway/internal/client/backend"
	"github.com/ownafarm/ownafarm-gateway/internal/contract"
	"github.com/ownafarm/ownafarm-gateway/internal/upload"
)

var (
	// ErrDuplicateRegistration is returned when the backend already holds a
	// registration for the same identity.
	ErrDuplicateRegistration = errors.New("a registration for this farmer already exists")

	// ErrInvalidRegistration is returned when the backend rejects the
	// registration payload.
	ErrInvalidRegistration = errors.New("registration rejected by backend")
)

// Registrar is the backend surface the service needs.
type Registrar interface {
	RegisterFarmer(ctx context.Context, req backend.RegisterRequest) (*backend.RegisterResponse, error)
}

// InvoiceMinter is the contract surface used to mint a submitted invoice.
type InvoiceMinter interface {
	SubmitInvoice(ctx context.Context, params contract.SubmitParams) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Uploader pushes the document set to object storage.
type Uploader interface {
	UploadAll(ctx context.Context, files map[string]upload.File) ([]backend.UploadedDocument, error)
}

// Service runs farmer onboarding: document upload, backend registration, and
// optional invoice minting.
type Service struct {
	uploader Uploader
	registry Registrar
	minter   InvoiceMinter
	log      *zap.Logger
}

// NewService wires the onboarding flow. minter may be nil when the gateway
// runs without a chain connection.
func NewService(uploader Uploader, registry Registrar, minter InvoiceMinter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{uploader: uploader, registry: registry, minter: minter, log: log}
}

// Input is one complete registration submission.
type Input struct {
	Personal backend.PersonalInfo
	Business backend.BusinessInfo
	Files    map[string]upload.File
}

// Register uploads the documents and then registers the farmer. The gate on
// required documents fires before any upload starts, and registration is only
// attempted once every upload landed.
func (s *Service) Register(ctx context.Context, in Input) (string, error) {
	docs, err := s.uploader.UploadAll(ctx, in.Files)
	if err != nil {
		return "", err
	}

	resp, err := s.registry.RegisterFarmer(ctx, backend.RegisterRequest{
		PersonalInfo: in.Personal,
		BusinessInfo: in.Business,
		Documents:    docs,
	})
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.IsDuplicate():
				return "", errors.Wrap(ErrDuplicateRegistration, apiErr.Message)
			case apiErr.IsValidation():
				return "", errors.Wrap(ErrInvalidRegistration, apiErr.Message)
			}
		}
		return "", errors.Wrap(err, "registration request failed")
	}

	s.log.Info("farmer registered",
		zap.String("farmer_id", resp.Data.FarmerID),
		zap.Int("documents", len(docs)))
	return resp.Data.FarmerID, nil
}

// InvoiceTerms are the funding terms of a new invoice.
type InvoiceTerms struct {
	OfftakerEmail string
	TargetFund    *big.Int
	YieldBps      uint16
	DurationDays  uint32
}

// MintedInvoice is the result of a confirmed invoice submission.
type MintedInvoice struct {
	TokenID    uint64
	TxHash     string
	OfftakerID [32]byte
}

// SubmitInvoice mints an invoice NFT for the given terms and waits for it to
// confirm. The assigned token id is read from the InvoiceSubmitted event.
func (s *Service) SubmitInvoice(ctx context.Context, terms InvoiceTerms) (*MintedInvoice, error) {
	if s.minter == nil {
		return nil, errors.New("invoice minting is not configured")
	}
	if terms.TargetFund == nil || terms.TargetFund.Sign() <= 0 {
		return nil, errors.New("target fund must be positive")
	}

	offtakerID := DeriveOfftakerID(terms.OfftakerEmail, time.Now())
	tx, err := s.minter.SubmitInvoice(ctx, contract.SubmitParams{
		OfftakerID: offtakerID,
		TargetFund: terms.TargetFund,
		YieldBps:   terms.YieldBps,
		Duration:   terms.DurationDays,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := s.minter.WaitMined(ctx, tx)
	if err != nil {
		return nil, err
	}
	event, err := contract.ParseInvoiceSubmitted(receipt)
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice minted",
		zap.Uint64("token_id", event.TokenID.Uint64()),
		zap.String("tx_hash", tx.Hash().Hex()))
	return &MintedInvoice{
		TokenID:    event.TokenID.Uint64(),
		TxHash:     tx.Hash().Hex(),
		OfftakerID: offtakerID,
	}, nil
}

// DeriveOfftakerID packs "email-unixmillis" into a bytes32 identifier. Short
// seeds are right-padded with zeros, longer seeds are truncated at the slot
// boundary.
func DeriveOfftakerID(email string, at time.Time) [32]byte {
	seed := fmt.Sprintf("%s-%d", email, at.UnixMilli())
	var id [32]byte
	copy(id[:], seed)
	return id
}
