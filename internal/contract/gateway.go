package contract

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ownafarm/ownafarm-gateway/internal/logger"
	"github.com/ownafarm/ownafarm-gateway/internal/wallet"
)

// Backend is the subset of the Ethereum client the gateway needs. Satisfied
// by *ethclient.Client.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Gateway reads and writes the OwnaFarmNFT contract on behalf of the
// configured signer.
type Gateway struct {
	backend        Backend
	signer         wallet.Signer
	address        common.Address
	chainID        *big.Int
	receiptTimeout time.Duration
	pollInterval   time.Duration
	confirmations  uint64
	log            *zap.Logger
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithReceiptTimeout bounds how long WaitMined polls for a receipt.
func WithReceiptTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.receiptTimeout = d }
}

// WithPollInterval sets the receipt polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) { g.pollInterval = d }
}

// WithConfirmations requires n blocks on top of the inclusion block before
// WaitMined returns.
func WithConfirmations(n uint64) Option {
	return func(g *Gateway) { g.confirmations = n }
}

// NewGateway verifies the backend is on the expected chain and returns a
// gateway bound to the contract address.
func NewGateway(ctx context.Context, backend Backend, signer wallet.Signer, address common.Address, chainID int64, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		backend:        backend,
		signer:         signer,
		address:        address,
		chainID:        big.NewInt(chainID),
		receiptTimeout: 2 * time.Minute,
		pollInterval:   2 * time.Second,
		confirmations:  1,
		log:            logger.Log,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	if err := g.VerifyChain(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// VerifyChain checks the node's reported chain id against the configured one.
func (g *Gateway) VerifyChain(ctx context.Context) error {
	got, err := g.backend.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to query chain id")
	}
	if got.Cmp(g.chainID) != 0 {
		return errors.Wrapf(ErrWrongChain, "node reports chain %s, want %s", got, g.chainID)
	}
	return nil
}

// Address returns the contract address the gateway is bound to.
func (g *Gateway) Address() common.Address {
	return g.address
}

func (g *Gateway) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := nftABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s call", method)
	}
	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &g.address, Data: data}, nil)
	if err != nil {
		if reason := revertReason(err); reason != "" {
			return nil, errors.Errorf("%s reverted: %s", method, reason)
		}
		return nil, errors.Wrapf(err, "%s call failed", method)
	}
	results, err := nftABI.Unpack(method, out)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s result", method)
	}
	return results, nil
}

// GetInvoice returns the invoice stored under tokenID.
func (g *Gateway) GetInvoice(ctx context.Context, tokenID *big.Int) (*Invoice, error) {
	out, err := g.call(ctx, "invoices", tokenID)
	if err != nil {
		return nil, err
	}
	if len(out) != 8 {
		return nil, errors.Errorf("invoices returned %d values, want 8", len(out))
	}
	inv := Invoice{
		Farmer:       *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		TargetFund:   *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		FundedAmount: *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		YieldBps:     *abi.ConvertType(out[3], new(uint16)).(*uint16),
		Duration:     *abi.ConvertType(out[4], new(uint32)).(*uint32),
		CreatedAt:    *abi.ConvertType(out[5], new(uint32)).(*uint32),
		Status:       InvoiceStatus(*abi.ConvertType(out[6], new(uint8)).(*uint8)),
		OfftakerID:   *abi.ConvertType(out[7], new([32]byte)).(*[32]byte),
	}
	return &inv, nil
}

// PendingInvoices lists invoices awaiting review, paginated by offset/limit.
func (g *Gateway) PendingInvoices(ctx context.Context, offset, limit *big.Int) ([]ListedInvoice, error) {
	return g.listInvoices(ctx, "getPendingInvoices", offset, limit)
}

// AvailableInvoices lists approved invoices open for funding.
func (g *Gateway) AvailableInvoices(ctx context.Context, offset, limit *big.Int) ([]ListedInvoice, error) {
	return g.listInvoices(ctx, "getAvailableInvoices", offset, limit)
}

func (g *Gateway) listInvoices(ctx context.Context, method string, offset, limit *big.Int) ([]ListedInvoice, error) {
	out, err := g.call(ctx, method, offset, limit)
	if err != nil {
		return nil, err
	}
	if len(out) != 2 {
		return nil, errors.Errorf("%s returned %d values, want 2", method, len(out))
	}
	ids := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	raws := *abi.ConvertType(out[1], new([]rawInvoice)).(*[]rawInvoice)
	if len(ids) != len(raws) {
		return nil, errors.Errorf("%s returned %d ids but %d invoices", method, len(ids), len(raws))
	}
	listed := make([]ListedInvoice, len(ids))
	for i := range ids {
		listed[i] = ListedInvoice{TokenID: ids[i], Invoice: fromRaw(raws[i])}
	}
	return listed, nil
}

// PendingCount returns the number of invoices awaiting review.
func (g *Gateway) PendingCount(ctx context.Context) (*big.Int, error) {
	return g.callUint(ctx, "getPendingCount")
}

// AvailableCount returns the number of approved invoices open for funding.
func (g *Gateway) AvailableCount(ctx context.Context) (*big.Int, error) {
	return g.callUint(ctx, "getAvailableCount")
}

// NextTokenID returns the id the next submitted invoice will mint under.
func (g *Gateway) NextTokenID(ctx context.Context) (*big.Int, error) {
	return g.callUint(ctx, "nextTokenId")
}

func (g *Gateway) callUint(ctx context.Context, method string) (*big.Int, error) {
	out, err := g.call(ctx, method)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, errors.Errorf("%s returned %d values, want 1", method, len(out))
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Stats aggregates the contract counters. Token ids start at 1, so total
// submitted is nextTokenId minus one.
func (g *Gateway) Stats(ctx context.Context) (*Stats, error) {
	next, err := g.NextTokenID(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := g.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	available, err := g.AvailableCount(ctx)
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Sub(next, big.NewInt(1))
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	return &Stats{TotalSubmitted: total, PendingCount: pending, AvailableCount: available}, nil
}

// ApproveInvoice submits an approval transaction for tokenID. The caller is
// responsible for waiting on the receipt.
func (g *Gateway) ApproveInvoice(ctx context.Context, tokenID *big.Int) (*types.Transaction, error) {
	return g.transact(ctx, "approveInvoice", tokenID)
}

// RejectInvoice submits a rejection transaction for tokenID.
func (g *Gateway) RejectInvoice(ctx context.Context, tokenID *big.Int) (*types.Transaction, error) {
	return g.transact(ctx, "rejectInvoice", tokenID)
}

// SubmitParams are the arguments for minting a new invoice.
type SubmitParams struct {
	OfftakerID [32]byte
	TargetFund *big.Int
	YieldBps   uint16
	Duration   uint32
}

// SubmitInvoice mints a new invoice NFT. The assigned token id is carried on
// the InvoiceSubmitted event in the receipt.
func (g *Gateway) SubmitInvoice(ctx context.Context, params SubmitParams) (*types.Transaction, error) {
	return g.transact(ctx, "submitInvoice", params.OfftakerID, params.TargetFund, params.YieldBps, params.Duration)
}

func (g *Gateway) transact(ctx context.Context, method string, args ...interface{}) (*types.Transaction, error) {
	// Re-check the chain right before signing so a node failover to the
	// wrong network can never produce a signed write.
	if err := g.VerifyChain(ctx); err != nil {
		return nil, err
	}

	data, err := nftABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s transaction", method)
	}

	from := g.signer.Address()
	nonce, err := g.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch account nonce")
	}
	gasPrice, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch gas price")
	}
	gasLimit, err := g.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &g.address,
		Data: data,
	})
	if err != nil {
		if reason := revertReason(err); reason != "" {
			return nil, errors.Errorf("%s would revert: %s", method, reason)
		}
		return nil, errors.Wrapf(err, "failed to estimate gas for %s", method)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &g.address,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := g.signer.SignTx(tx, g.chainID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign %s transaction", method)
	}
	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return nil, errors.Wrapf(err, "failed to broadcast %s transaction", method)
	}

	g.log.Info("transaction broadcast",
		zap.String("method", method),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce))
	return signed, nil
}

// WaitMined polls for the receipt of tx until it lands, reverts, or the
// receipt window expires. A mined transaction with failed status returns
// ErrTxReverted; an expired window returns ErrReceiptTimeout.
func (g *Gateway) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, g.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.backend.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, errors.Wrapf(ErrTxReverted, "tx %s", tx.Hash().Hex())
			}
			if g.confirmations <= 1 {
				return receipt, nil
			}
			confirmed, waitErr := g.hasConfirmations(ctx, receipt)
			if waitErr != nil {
				return nil, waitErr
			}
			if confirmed {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ErrReceiptTimeout, "tx %s", tx.Hash().Hex())
		case <-ticker.C:
		}
	}
}

func (g *Gateway) hasConfirmations(ctx context.Context, receipt *types.Receipt) (bool, error) {
	head, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to fetch block number")
	}
	return head >= receipt.BlockNumber.Uint64()+g.confirmations-1, nil
}
