// Package auth implements the wallet-based admin authentication
// handshake against the OwnaFarm backend: fetch a single-use nonce, sign
// it as EIP-712 typed data, and exchange the signature for a bearer
// token held in a Session.
package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/ownafarm/ownafarm-gateway/internal/client/backend"
	"github.com/ownafarm/ownafarm-gateway/internal/wallet"
	"go.uber.org/zap"
)

// SigningDomain identifies this application in EIP-712 signatures. The
// domain plus chain id bind every login signature to OwnaFarm on the
// configured chain, so a signature captured elsewhere cannot be replayed
// here.
const (
	SigningDomainName    = "OwnaFarm"
	SigningDomainVersion = "1"
)

// authClient is the slice of the backend API the handshake needs.
type authClient interface {
	GetAdminNonce(ctx context.Context, walletAddress string) (*backend.NonceResponse, error)
	AdminLogin(ctx context.Context, req backend.LoginRequest) (*backend.LoginResponse, error)
}

// Handshake runs the nonce/sign/login exchange for one signer.
type Handshake struct {
	client  authClient
	signer  wallet.Signer
	session *Session
	chainID int64
	logger  *zap.Logger

	mu       sync.Mutex
	inflight *loginCall
}

type loginCall struct {
	done  chan struct{}
	admin *backend.Admin
	err   error
}

// NewHandshake creates a handshake bound to a signer and session.
func NewHandshake(client authClient, signer wallet.Signer, session *Session, chainID int64, logger *zap.Logger) *Handshake {
	return &Handshake{
		client:  client,
		signer:  signer,
		session: session,
		chainID: chainID,
		logger:  logger,
	}
}

// BuildTypedData constructs the EIP-712 payload for an admin login: a
// single Login.message field under the OwnaFarm domain. The shape must
// match what the backend verifies byte for byte.
func BuildTypedData(chainID int64, signMessage string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Login": []apitypes.Type{
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "Login",
		Domain: apitypes.TypedDataDomain{
			Name:    SigningDomainName,
			Version: SigningDomainVersion,
			ChainId: math.NewHexOrDecimal256(chainID),
		},
		Message: apitypes.TypedDataMessage{
			"message": signMessage,
		},
	}
}

// Login performs the full handshake and installs the resulting session.
// Only one handshake runs at a time per signer; concurrent callers wait
// for the in-flight attempt and share its outcome, so effect re-fires
// can never trigger a second signature prompt. A failed attempt never
// leaves a token behind, and its nonce is discarded - the next call
// always fetches a fresh one.
func (h *Handshake) Login(ctx context.Context) (*backend.Admin, error) {
	h.mu.Lock()
	if h.inflight != nil {
		call := h.inflight
		h.mu.Unlock()
		select {
		case <-call.done:
			return call.admin, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &loginCall{done: make(chan struct{})}
	h.inflight = call
	h.mu.Unlock()

	call.admin, call.err = h.login(ctx)
	close(call.done)

	h.mu.Lock()
	h.inflight = nil
	h.mu.Unlock()

	return call.admin, call.err
}

func (h *Handshake) login(ctx context.Context) (*backend.Admin, error) {
	address := h.signer.Address().Hex()

	nonce, err := h.client.GetAdminNonce(ctx, address)
	if err != nil {
		h.logger.Warn("Nonce request rejected",
			zap.String("wallet_address", address),
			zap.Error(err))
		return nil, &AuthError{Kind: NonceUnavailable, Message: upstreamMessage(err), Err: err}
	}

	typedData := BuildTypedData(h.chainID, nonce.SignMessage)
	signature, err := h.signer.SignTypedData(typedData)
	if err != nil {
		return nil, &AuthError{Kind: UserRejected, Message: "signature request was refused", Err: err}
	}

	login, err := h.client.AdminLogin(ctx, backend.LoginRequest{
		WalletAddress: address,
		Signature:     hexutil.Encode(signature),
		Nonce:         nonce.Nonce,
	})
	if err != nil {
		h.logger.Warn("Admin login rejected",
			zap.String("wallet_address", address),
			zap.Error(err))
		return nil, &AuthError{Kind: LoginFailed, Message: upstreamMessage(err), Err: err}
	}

	h.session.Set(login.Token, login.Admin.WalletAddress, login.Admin.Role)
	h.logger.Info("Admin session established",
		zap.String("wallet_address", login.Admin.WalletAddress),
		zap.String("role", login.Admin.Role))

	return &login.Admin, nil
}

// Logout clears the session.
func (h *Handshake) Logout() {
	h.session.Clear()
	h.logger.Info("Admin session cleared")
}

func upstreamMessage(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
