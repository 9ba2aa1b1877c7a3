package contract

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrWrongChain is returned when the connected node reports a chain id
	// different from the one the gateway was configured for. Writes are
	// never signed in that state.
	ErrWrongChain = errors.New("connected node is on the wrong chain")

	// ErrReceiptTimeout is returned when a transaction was broadcast but no
	// receipt appeared within the configured window. The transaction may
	// still land later.
	ErrReceiptTimeout = errors.New("timed out waiting for transaction receipt")

	// ErrTxReverted is returned when a mined transaction has a failed status.
	ErrTxReverted = errors.New("transaction reverted on chain")

	// ErrEventNotFound is returned when a receipt does not contain the
	// expected contract event.
	ErrEventNotFound = errors.New("expected event not found in transaction logs")
)

// dataError is implemented by go-ethereum RPC errors that carry the raw
// revert payload alongside the message.
type dataError interface {
	ErrorData() interface{}
}

// revertReason tries to pull a human readable revert string out of an RPC
// error. Returns "" when the payload is absent or not a string revert.
func revertReason(err error) string {
	var de dataError
	if !errors.As(err, &de) {
		return ""
	}
	hexData, ok := de.ErrorData().(string)
	if !ok {
		return ""
	}
	raw, decodeErr := hex.DecodeString(strings.TrimPrefix(hexData, "0x"))
	if decodeErr != nil {
		return ""
	}
	// Error(string) selector 0x08c379a0 followed by ABI-encoded string.
	if len(raw) < 4+32+32 || hex.EncodeToString(raw[:4]) != "08c379a0" {
		return ""
	}
	return decodeRevertString(raw[4:])
}

// decodeRevertString hand-decodes the ABI string layout: offset word, length
// word, then the bytes.
func decodeRevertString(payload []byte) string {
	if len(payload) < 64 {
		return ""
	}
	length := int(new(bigEndianWord).set(payload[32:64]).value)
	if length < 0 || 64+length > len(payload) {
		return ""
	}
	return string(payload[64 : 64+length])
}

type bigEndianWord struct{ value int64 }

func (w *bigEndianWord) set(word []byte) *bigEndianWord {
	var v int64
	for _, b := range word[24:] {
		v = v<<8 | int64(b)
	}
	w.value = v
	return w
}
