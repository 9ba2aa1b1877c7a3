// Package wallet provides the signing identity used for admin actions:
// EIP-712 typed-data signatures for the auth handshake and transaction
// signatures for contract writes. Key material is loaded once and never
// leaves the signer.
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signer proves control of a wallet address.
type Signer interface {
	// Address returns the wallet address of this signer.
	Address() common.Address
	// SignTypedData produces an EIP-712 signature over the typed data,
	// with the Ethereum recovery-id offset applied.
	SignTypedData(typedData apitypes.TypedData) ([]byte, error)
	// SignTx signs a transaction for the given chain id.
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// LocalSigner signs with an in-process secp256k1 key.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner creates a signer from a hex-encoded private key, with
// or without a 0x prefix.
func NewLocalSigner(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signer key: %w", err)
	}
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the wallet address of this signer.
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTypedData hashes the typed data per EIP-712 and signs the digest.
func (s *LocalSigner) SignTypedData(typedData apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	signature, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}

	// Wallets return v as 27/28; crypto.Sign yields 0/1.
	signature[64] += 27
	return signature, nil
}

// SignTx signs a transaction with the chain-bound signer.
func (s *LocalSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}
