package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ownaFarmNFTABI is the OwnaFarmNFT interface this gateway consumes. The
// contract itself lives on chain; only its surface is mirrored here.
const ownaFarmNFTABI = `[
  {"type":"function","name":"approveInvoice","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"rejectInvoice","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"submitInvoice","stateMutability":"nonpayable","inputs":[{"name":"offtakerId","type":"bytes32"},{"name":"targetFund","type":"uint128"},{"name":"yieldBps","type":"uint16"},{"name":"duration","type":"uint32"}],"outputs":[]},
  {"type":"function","name":"invoices","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"farmer","type":"address"},{"name":"targetFund","type":"uint128"},{"name":"fundedAmount","type":"uint128"},{"name":"yieldBps","type":"uint16"},{"name":"duration","type":"uint32"},{"name":"createdAt","type":"uint32"},{"name":"status","type":"uint8"},{"name":"offtakerId","type":"bytes32"}]},
  {"type":"function","name":"getPendingInvoices","stateMutability":"view","inputs":[{"name":"offset","type":"uint256"},{"name":"limit","type":"uint256"}],"outputs":[{"name":"ids","type":"uint256[]"},{"name":"data","type":"tuple[]","components":[{"name":"farmer","type":"address"},{"name":"targetFund","type":"uint128"},{"name":"fundedAmount","type":"uint128"},{"name":"yieldBps","type":"uint16"},{"name":"duration","type":"uint32"},{"name":"createdAt","type":"uint32"},{"name":"status","type":"uint8"},{"name":"offtakerId","type":"bytes32"}]}]},
  {"type":"function","name":"getAvailableInvoices","stateMutability":"view","inputs":[{"name":"offset","type":"uint256"},{"name":"limit","type":"uint256"}],"outputs":[{"name":"ids","type":"uint256[]"},{"name":"data","type":"tuple[]","components":[{"name":"farmer","type":"address"},{"name":"targetFund","type":"uint128"},{"name":"fundedAmount","type":"uint128"},{"name":"yieldBps","type":"uint16"},{"name":"duration","type":"uint32"},{"name":"createdAt","type":"uint32"},{"name":"status","type":"uint8"},{"name":"offtakerId","type":"bytes32"}]}]},
  {"type":"function","name":"getPendingCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getAvailableCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"nextTokenId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"InvoiceSubmitted","inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"farmer","type":"address","indexed":true},{"name":"offtakerId","type":"bytes32","indexed":false},{"name":"targetFund","type":"uint128","indexed":false}],"anonymous":false},
  {"type":"event","name":"InvoiceApproved","inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"approver","type":"address","indexed":true}],"anonymous":false},
  {"type":"event","name":"InvoiceRejected","inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"rejector","type":"address","indexed":true}],"anonymous":false}
]`

var nftABI = mustParseABI(ownaFarmNFTABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("invalid OwnaFarmNFT ABI: " + err.Error())
	}
	return parsed
}
