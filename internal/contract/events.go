package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// InvoiceSubmittedEvent is the decoded InvoiceSubmitted log entry.
type InvoiceSubmittedEvent struct {
	TokenID    *big.Int
	Farmer     common.Address
	OfftakerID [32]byte
	TargetFund *big.Int
}

// InvoiceDecisionEvent is the decoded InvoiceApproved or InvoiceRejected log
// entry. Decider is the approver or rejector address.
type InvoiceDecisionEvent struct {
	TokenID *big.Int
	Decider common.Address
}

// InvoiceSubmittedID returns the topic hash identifying InvoiceSubmitted logs.
func InvoiceSubmittedID() common.Hash {
	return nftABI.Events["InvoiceSubmitted"].ID
}

// PackInvoiceSubmittedData encodes the non-indexed InvoiceSubmitted fields.
// Used to construct receipts in simulations and tests.
func PackInvoiceSubmittedData(offtakerID [32]byte, targetFund *big.Int) ([]byte, error) {
	return nftABI.Events["InvoiceSubmitted"].Inputs.NonIndexed().Pack(offtakerID, targetFund)
}

// ParseInvoiceSubmitted extracts the InvoiceSubmitted event from a receipt.
// Returns ErrEventNotFound when no matching log is present.
func ParseInvoiceSubmitted(receipt *types.Receipt) (*InvoiceSubmittedEvent, error) {
	ev := nftABI.Events["InvoiceSubmitted"]
	for _, log := range receipt.Logs {
		if len(log.Topics) < 3 || log.Topics[0] != ev.ID {
			continue
		}
		unpacked, err := nftABI.Unpack("InvoiceSubmitted", log.Data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode InvoiceSubmitted data")
		}
		if len(unpacked) != 2 {
			return nil, errors.Errorf("InvoiceSubmitted carried %d data fields, want 2", len(unpacked))
		}
		return &InvoiceSubmittedEvent{
			TokenID:    new(big.Int).SetBytes(log.Topics[1].Bytes()),
			Farmer:     common.BytesToAddress(log.Topics[2].Bytes()),
			OfftakerID: *abi.ConvertType(unpacked[0], new([32]byte)).(*[32]byte),
			TargetFund: *abi.ConvertType(unpacked[1], new(*big.Int)).(**big.Int),
		}, nil
	}
	return nil, errors.Wrap(ErrEventNotFound, "InvoiceSubmitted")
}

// ParseInvoiceApproved extracts the InvoiceApproved event from a receipt.
func ParseInvoiceApproved(receipt *types.Receipt) (*InvoiceDecisionEvent, error) {
	return parseDecisionEvent(receipt, "InvoiceApproved")
}

// ParseInvoiceRejected extracts the InvoiceRejected event from a receipt.
func ParseInvoiceRejected(receipt *types.Receipt) (*InvoiceDecisionEvent, error) {
	return parseDecisionEvent(receipt, "InvoiceRejected")
}

func parseDecisionEvent(receipt *types.Receipt, name string) (*InvoiceDecisionEvent, error) {
	ev := nftABI.Events[name]
	for _, log := range receipt.Logs {
		if len(log.Topics) < 3 || log.Topics[0] != ev.ID {
			continue
		}
		return &InvoiceDecisionEvent{
			TokenID: new(big.Int).SetBytes(log.Topics[1].Bytes()),
			Decider: common.BytesToAddress(log.Topics[2].Bytes()),
		}, nil
	}
	return nil, errors.Wrap(ErrEventNotFound, name)
}
