package handlers

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/ownafarm/ownafarm-gateway/internal/auth"
	"github.com/ownafarm/ownafarm-gateway/internal/client/backend"
	"github.com/ownafarm/ownafarm-gateway/internal/constants"
	"github.com/ownafarm/ownafarm-gateway/internal/contract"
	"github.com/ownafarm/ownafarm-gateway/internal/decision"
)

// AdminBackend is the backend surface the admin handlers consume.
type AdminBackend interface {
	Health(ctx context.Context) error
	ListFarmers(ctx context.Context, status string) ([]backend.Farmer, error)
}

// ChainReader serves invoice reads for the dashboard.
type ChainReader interface {
	GetInvoice(ctx context.Context, tokenID *big.Int) (*contract.Invoice, error)
	PendingInvoices(ctx context.Context, offset, limit *big.Int) ([]contract.ListedInvoice, error)
	AvailableInvoices(ctx context.Context, offset, limit *big.Int) ([]contract.ListedInvoice, error)
	Stats(ctx context.Context) (*contract.Stats, error)
	Address() common.Address
}

// Decider runs the two-phase approve/reject flow.
type Decider interface {
	Decide(ctx context.Context, req decision.Request) (*decision.Result, error)
	ReconcilePending(ctx context.Context) (*decision.ReconcileReport, error)
}

// AdminHandler serves the review dashboard API.
type AdminHandler struct {
	handshake       *auth.Handshake
	session         *auth.Session
	backend         AdminBackend
	chain           ChainReader
	decisions       Decider
	explorerBaseURL string
	log             *zap.Logger
}

// NewAdminHandler wires the dashboard handler.
func NewAdminHandler(handshake *auth.Handshake, session *auth.Session, b AdminBackend, chain ChainReader, decisions Decider, explorerBaseURL string, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{
		handshake:       handshake,
		session:         session,
		backend:         b,
		chain:           chain,
		decisions:       decisions,
		explorerBaseURL: explorerBaseURL,
		log:             log,
	}
}

// Login runs the wallet signature handshake and opens the admin session.
// POST /admin/session
func (h *AdminHandler) Login(c *gin.Context) {
	admin, err := h.handshake.Login(c.Request.Context())
	if err != nil {
		status := http.StatusBadGateway
		var authErr *auth.AuthError
		if errors.As(err, &authErr) && authErr.Kind == auth.LoginFailed {
			status = http.StatusUnauthorized
		}
		sendError(c, status, err.Error())
		return
	}
	sendSuccess(c, http.StatusOK, "admin session opened", gin.H{
		"wallet_address": admin.WalletAddress,
		"role":           admin.Role,
	})
}

// Logout drops the admin session.
// DELETE /admin/session
func (h *AdminHandler) Logout(c *gin.Context) {
	h.handshake.Logout()
	sendSuccess(c, http.StatusOK, "admin session closed", nil)
}

// Session reports the current session state.
// GET /admin/session
func (h *AdminHandler) Session(c *gin.Context) {
	walletAddress, role, ok := h.session.Admin()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"active":         ok,
			"wallet_address": walletAddress,
			"role":           role,
		},
	})
}

// ListFarmers proxies the farmer list, optionally filtered by status.
// GET /admin/farmers?status=pending
func (h *AdminHandler) ListFarmers(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", constants.PendingStatus, constants.ApprovedStatus, constants.RejectedStatus:
	default:
		sendError(c, http.StatusBadRequest, fmt.Sprintf("unknown status filter %q", status))
		return
	}

	farmers, err := h.backend.ListFarmers(c.Request.Context(), status)
	if err != nil {
		h.respondBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"farmers": farmers},
	})
}

type decideRequest struct {
	TokenID *uint64 `json:"token_id"`
	Reason  string  `json:"reason"`
}

// ApproveFarmer approves a farmer's invoice on chain and then mirrors the
// decision to the backend.
// POST /admin/farmers/:id/approve
func (h *AdminHandler) ApproveFarmer(c *gin.Context) {
	h.decide(c, constants.ApproveAction)
}

// RejectFarmer rejects a farmer's invoice on chain and then mirrors the
// decision to the backend. The reject reason is required.
// POST /admin/farmers/:id/reject
func (h *AdminHandler) RejectFarmer(c *gin.Context) {
	h.decide(c, constants.RejectAction)
}

func (h *AdminHandler) decide(c *gin.Context, action string) {
	farmerID := c.Param("id")
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if action == constants.RejectAction && req.Reason == "" {
		sendError(c, http.StatusBadRequest, "reject reason is required")
		return
	}

	result, err := h.decisions.Decide(c.Request.Context(), decision.Request{
		FarmerID: farmerID,
		TokenID:  req.TokenID,
		Action:   action,
		Reason:   req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, decision.ErrMissingTokenID):
			sendError(c, http.StatusUnprocessableEntity, "farmer has no minted invoice to decide on")
		case errors.Is(err, decision.ErrDecisionInFlight):
			sendError(c, http.StatusConflict, "a decision for this invoice is already in progress")
		case errors.Is(err, decision.ErrBackendOutOfSync):
			// The chain write landed. Tell the operator the truth instead
			// of a generic failure.
			sendError(c, http.StatusBadGateway, err.Error())
		case errors.Is(err, contract.ErrWrongChain):
			sendError(c, http.StatusBadGateway, "chain node is on the wrong network, no transaction was sent")
		case errors.Is(err, contract.ErrReceiptTimeout):
			sendError(c, http.StatusGatewayTimeout, err.Error())
		default:
			sendError(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	sendSuccess(c, http.StatusOK, fmt.Sprintf("invoice #%d %sd", result.TokenID, action), gin.H{
		"token_id":     result.TokenID,
		"action":       result.Action,
		"tx_hash":      result.TxHash,
		"explorer_url": h.txExplorerURL(result.TxHash),
	})
}

// Reconcile replays journal entries whose backend update failed.
// POST /admin/reconcile
func (h *AdminHandler) Reconcile(c *gin.Context) {
	report, err := h.decisions.ReconcilePending(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, http.StatusOK,
		fmt.Sprintf("reconciled %d of %d out-of-sync decisions", report.Repaired, report.Attempted),
		gin.H{
			"attempted": report.Attempted,
			"repaired":  report.Repaired,
			"remaining": report.Remaining,
		})
}

// GetInvoice returns the on-chain invoice for a token id.
// GET /admin/invoices/:token_id
func (h *AdminHandler) GetInvoice(c *gin.Context) {
	tokenID, ok := h.parseTokenID(c)
	if !ok {
		return
	}

	invoice, err := h.chain.GetInvoice(c.Request.Context(), new(big.Int).SetUint64(tokenID))
	if err != nil {
		sendError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"token_id":      tokenID,
			"farmer":        invoice.Farmer.Hex(),
			"target_fund":   invoice.TargetFund.String(),
			"funded_amount": invoice.FundedAmount.String(),
			"yield_bps":     invoice.YieldBps,
			"duration":      invoice.Duration,
			"created_at":    invoice.CreatedAt,
			"invoice_status": invoice.Status.String(),
			"explorer_url":  h.contractExplorerURL(),
		},
	})
}

// InvoiceQR renders a QR code pointing at the invoice on the block explorer.
// GET /admin/invoices/:token_id/qr
func (h *AdminHandler) InvoiceQR(c *gin.Context) {
	tokenID, ok := h.parseTokenID(c)
	if !ok {
		return
	}

	target := fmt.Sprintf("%s/token/%s?a=%d", h.explorerBaseURL, h.chain.Address().Hex(), tokenID)
	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "failed to render QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// Stats returns aggregate contract counters for the dashboard header.
// GET /admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.chain.Stats(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"total_submitted": stats.TotalSubmitted.String(),
			"pending_count":   stats.PendingCount.String(),
			"available_count": stats.AvailableCount.String(),
		},
	})
}

// PendingInvoices lists invoices awaiting review straight from the chain.
// GET /admin/invoices?state=pending|available
func (h *AdminHandler) ListInvoices(c *gin.Context) {
	offset, limit, ok := h.parsePagination(c)
	if !ok {
		return
	}

	var (
		listed []contract.ListedInvoice
		err    error
	)
	state := c.DefaultQuery("state", "pending")
	switch state {
	case "pending":
		listed, err = h.chain.PendingInvoices(c.Request.Context(), offset, limit)
	case "available":
		listed, err = h.chain.AvailableInvoices(c.Request.Context(), offset, limit)
	default:
		sendError(c, http.StatusBadRequest, fmt.Sprintf("unknown invoice state %q", state))
		return
	}
	if err != nil {
		sendError(c, http.StatusBadGateway, err.Error())
		return
	}

	items := make([]gin.H, len(listed))
	for i, inv := range listed {
		items[i] = gin.H{
			"token_id":       inv.TokenID.Uint64(),
			"farmer":         inv.Farmer.Hex(),
			"target_fund":    inv.TargetFund.String(),
			"funded_amount":  inv.FundedAmount.String(),
			"yield_bps":      inv.YieldBps,
			"duration":       inv.Duration,
			"invoice_status": inv.Status.String(),
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"invoices": items},
	})
}

func (h *AdminHandler) parseTokenID(c *gin.Context) (uint64, bool) {
	tokenID, err := strconv.ParseUint(c.Param("token_id"), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, "token_id must be a positive integer")
		return 0, false
	}
	return tokenID, true
}

func (h *AdminHandler) parsePagination(c *gin.Context) (*big.Int, *big.Int, bool) {
	offset, err := strconv.ParseUint(c.DefaultQuery("offset", "0"), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, "offset must be a non-negative integer")
		return nil, nil, false
	}
	limit, err := strconv.ParseUint(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit == 0 || limit > 100 {
		sendError(c, http.StatusBadRequest, "limit must be between 1 and 100")
		return nil, nil, false
	}
	return new(big.Int).SetUint64(offset), new(big.Int).SetUint64(limit), true
}

func (h *AdminHandler) respondBackendError(c *gin.Context, err error) {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsUnauthorized() {
			sendError(c, http.StatusUnauthorized, "admin session expired, log in again")
			return
		}
		sendError(c, http.StatusBadGateway, apiErr.Message)
		return
	}
	sendError(c, http.StatusBadGateway, err.Error())
}

func (h *AdminHandler) txExplorerURL(txHash string) string {
	return fmt.Sprintf("%s/tx/%s", h.explorerBaseURL, txHash)
}

func (h *AdminHandler) contractExplorerURL() string {
	return fmt.Sprintf("%s/address/%s", h.explorerBaseURL, h.chain.Address().Hex())
}
