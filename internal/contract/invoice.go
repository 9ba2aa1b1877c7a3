package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// InvoiceStatus mirrors the on-chain invoice lifecycle enum.
type InvoiceStatus uint8

const (
	StatusPending InvoiceStatus = iota
	StatusApproved
	StatusRejected
	StatusFunded
	StatusCompleted
)

func (s InvoiceStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusFunded:
		return "funded"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// rawInvoice matches the tuple layout returned by the contract. Field names
// and types must line up exactly for ABI conversion.
type rawInvoice struct {
	Farmer       common.Address
	TargetFund   *big.Int
	FundedAmount *big.Int
	YieldBps     uint16
	Duration     uint32
	CreatedAt    uint32
	Status       uint8
	OfftakerId   [32]byte
}

// Invoice is the decoded on-chain record for a single farmer invoice.
type Invoice struct {
	Farmer       common.Address
	TargetFund   *big.Int
	FundedAmount *big.Int
	YieldBps     uint16
	Duration     uint32
	CreatedAt    uint32
	Status       InvoiceStatus
	OfftakerID   [32]byte
}

// ListedInvoice pairs an invoice with the token id it was minted under.
type ListedInvoice struct {
	TokenID *big.Int
	Invoice
}

// Stats is an aggregate snapshot of the contract's invoice counters.
type Stats struct {
	TotalSubmitted *big.Int
	PendingCount   *big.Int
	AvailableCount *big.Int
}

func fromRaw(r rawInvoice) Invoice {
	return Invoice{
		Farmer:       r.Farmer,
		TargetFund:   r.TargetFund,
		FundedAmount: r.FundedAmount,
		YieldBps:     r.YieldBps,
		Duration:     r.Duration,
		CreatedAt:    r.CreatedAt,
		Status:       InvoiceStatus(r.Status),
		OfftakerID:   r.OfftakerId,
	}
}
