package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ownafarm/ownafarm-gateway/internal/auth"
	"github.com/ownafarm/ownafarm-gateway/internal/client/backend"
	"github.com/ownafarm/ownafarm-gateway/internal/contract"
	"github.com/ownafarm/ownafarm-gateway/internal/decision"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAdminBackend struct {
	farmers   []backend.Farmer
	listErr   error
	healthErr error
}

func (b *fakeAdminBackend) Health(context.Context) error { return b.healthErr }

func (b *fakeAdminBackend) ListFarmers(_ context.Context, _ string) ([]backend.Farmer, error) {
	return b.farmers, b.listErr
}

type fakeChainReader struct {
	invoice *contract.Invoice
	stats   *contract.Stats
	listed  []contract.ListedInvoice
	err     error
}

func (c *fakeChainReader) GetInvoice(context.Context, *big.Int) (*contract.Invoice, error) {
	return c.invoice, c.err
}

func (c *fakeChainReader) PendingInvoices(context.Context, *big.Int, *big.Int) ([]contract.ListedInvoice, error) {
	return c.listed, c.err
}

func (c *fakeChainReader) AvailableInvoices(context.Context, *big.Int, *big.Int) ([]contract.ListedInvoice, error) {
	return c.listed, c.err
}

func (c *fakeChainReader) Stats(context.Context) (*contract.Stats, error) {
	return c.stats, c.err
}

func (c *fakeChainReader) Address() common.Address {
	return common.HexToAddress("0xC51601dde25775bA2740EE14D633FA54e12Ef6C7")
}

type fakeDecider struct {
	lastReq *decision.Request
	result  *decision.Result
	err     error
	report  *decision.ReconcileReport
}

func (d *fakeDecider) Decide(_ context.Context, req decision.Request) (*decision.Result, error) {
	d.lastReq = &req
	return d.result, d.err
}

func (d *fakeDecider) ReconcilePending(context.Context) (*decision.ReconcileReport, error) {
	return d.report, d.err
}

func newTestRouter(h *AdminHandler) *gin.Engine {
	router := gin.New()
	router.GET("/admin/session", h.Session)
	router.GET("/admin/farmers", h.ListFarmers)
	router.POST("/admin/farmers/:id/approve", h.ApproveFarmer)
	router.POST("/admin/farmers/:id/reject", h.RejectFarmer)
	router.POST("/admin/reconcile", h.Reconcile)
	router.GET("/admin/invoices/:token_id", h.GetInvoice)
	router.GET("/admin/invoices/:token_id/qr", h.InvoiceQR)
	router.GET("/admin/stats", h.Stats)
	return router
}

func newTestHandler(b *fakeAdminBackend, chain *fakeChainReader, d *fakeDecider) *AdminHandler {
	return NewAdminHandler(nil, auth.NewSession(), b, chain, d, "https://sepolia.mantlescan.xyz", nil)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type bannerEnvelope struct {
	Status string                 `json:"status"`
	Error  string                 `json:"error"`
	Data   map[string]interface{} `json:"data"`
	Banner Banner                 `json:"banner"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) bannerEnvelope {
	t.Helper()
	var env bannerEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestApproveFarmerSuccessBanner(t *testing.T) {
	decider := &fakeDecider{result: &decision.Result{TokenID: 42, Action: "approve", TxHash: "0xdeadbeef"}}
	router := newTestRouter(newTestHandler(&fakeAdminBackend{}, &fakeChainReader{}, decider))

	w := doJSON(t, router, http.MethodPost, "/admin/farmers/f1/approve", map[string]interface{}{"token_id": 42})
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "success", env.Banner.Kind)
	assert.Equal(t, 3000, env.Banner.ClearAfterMs)
	assert.Equal(t, "0xdeadbeef", env.Data["tx_hash"])
	assert.Equal(t, "https://sepolia.mantlescan.xyz/tx/0xdeadbeef", env.Data["explorer_url"])

	require.NotNil(t, decider.lastReq)
	assert.Equal(t, "f1", decider.lastReq.FarmerID)
	require.NotNil(t, decider.lastReq.TokenID)
	assert.Equal(t, uint64(42), *decider.lastReq.TokenID)
	assert.Equal(t, "approve", decider.lastReq.Action)
}

func TestRejectFarmerRequiresReason(t *testing.T) {
	decider := &fakeDecider{}
	router := newTestRouter(newTestHandler(&fakeAdminBackend{}, &fakeChainReader{}, decider))

	w := doJSON(t, router, http.MethodPost, "/admin/farmers/f1/reject", map[string]interface{}{"token_id": 42})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, decider.lastReq)

	env := decodeEnvelope(t, w)
	assert.Equal(t, "error", env.Banner.Kind)
	assert.Equal(t, 5000, env.Banner.ClearAfterMs)
}

func TestRejectFarmerPassesReason(t *testing.T) {
	decider := &fakeDecider{result: &decision.Result{TokenID: 7, Action: "reject", TxHash: "0xbeef"}}
	router := newTestRouter(newTestHandler(&fakeAdminBackend{}, &fakeChainReader{}, decider))

	w := doJSON(t, router, http.MethodPost, "/admin/farmers/f2/reject", map[string]interface{}{
		"token_id": 7, "reason": "documents unreadable",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "documents unreadable", decider.lastReq.Reason)
}

func TestDecideErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"missing token", decision.ErrMissingTokenID, http.StatusUnprocessableEntity},
		{"in flight", decision.ErrDecisionInFlight, http.StatusConflict},
		{"out of sync", errors.Wrap(decision.ErrBackendOutOfSync, "tx 0xdeadbeef confirmed"), http.StatusBadGateway},
		{"wrong chain", contract.ErrWrongChain, http.StatusBadGateway},
		{"receipt timeout", contract.ErrReceiptTimeout, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decider := &fakeDecider{err: tt.err}
			router := newTestRouter(newTestHandler(&fakeAdminBackend{}, &fakeChainReader{}, decider))

			w := doJSON(t, router, http.MethodPost, "/admin/farmers/f1/approve", map[string]interface{}{"token_id": 1})
			require.Equal(t, tt.wantStatus, w.Code)

			env := decodeEnvelope(t, w)
			assert.Equal(t, "error", env.Banner.Kind)
			assert.Equal(t, 5000, env.Banner.ClearAfterMs)
		})
	}
}

func TestListFarmersRejectsUnknownStatus(t *testing.T) {
	router := newTestRouter(newTestHandler(&fakeAdminBackend{}, &fakeChainReader{}, &fakeDecider{}))

	req := httptest.NewRequest(http.MethodGet, "/admin/farmers?status=weird", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListFarmersSessionExpiry(t *testing.T) {
	b := &fakeAdminBackend{listErr: &backend.APIError{StatusCode: 401, Message: "token expired"}}
	router := newTestRouter(newTestHandler(b, &fakeChainReader{}, &fakeDecider{}))

	req := httptest.NewRequest(http.MethodGet, "/admin/farmers?status=pending", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReconcileReportsCounts(t *testing.T) {
	decider := &fakeDecider{report: &decision.ReconcileReport{Attempted: 3, Repaired: 2, Remaining: 1}}
	router := newTestRouter(newTestHandler(&fakeAdminBackend{}, &fakeChainReader{}, decider))

	w := doJSON(t, router, http.MethodPost, "/admin/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, float64(3), env.Data["attempted"])
	assert.Equal(t, float64(2), env.Data["repaired"])
	assert.Equal(t, float64(1), env.Data["remaining"])
}

func TestGetInvoice(t *testing.T) {
	chain := &fakeChainReader{invoice: &contract.Invoice{
		Farmer:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		TargetFund:   big.NewInt(5_000_000),
		FundedAmount: big.NewInt(0),
		YieldBps:     800,
		Duration:     90,
		Status:       contract.StatusPending,
	}}
	router := newTestRouter(newTestHandler(&fakeAdminBackend{}, chain, &fakeDecider{}))

	req := httptest.NewRequest(http.MethodGet, "/admin/invoices/42", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, "5000000", env.Data["target_fund"])
	assert.Equal(t, "pending", env.Data["invoice_status"])
}

func TestGetInvoiceRejectsBadTokenID(t *testing.T) {
	router := newTestRouter(newTestHandler(&fakeAdminBackend{}, &fakeChainReader{}, &fakeDecider{}))

	req := httptest.NewRequest(http.MethodGet, "/admin/invoices/notanumber", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceQRReturnsPNG(t *testing.T) {
	router := newTestRouter(newTestHandler(&fakeAdminBackend{}, &fakeChainReader{}, &fakeDecider{}))

	req := httptest.NewRequest(http.MethodGet, "/admin/invoices/42/qr", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, w.Body.Bytes()[:4])
}

func TestStats(t *testing.T) {
	chain := &fakeChainReader{stats: &contract.Stats{
		TotalSubmitted: big.NewInt(10),
		PendingCount:   big.NewInt(3),
		AvailableCount: big.NewInt(5),
	}}
	router := newTestRouter(newTestHandler(&fakeAdminBackend{}, chain, &fakeDecider{}))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, "10", env.Data["total_submitted"])
	assert.Equal(t, "3", env.Data["pending_count"])
	assert.Equal(t, "5", env.Data["available_count"])
}

func TestSessionEndpointReflectsState(t *testing.T) {
	session := auth.NewSession()
	h := NewAdminHandler(nil, session, &fakeAdminBackend{}, &fakeChainReader{}, &fakeDecider{}, "https://x", nil)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/admin/session", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	env := decodeEnvelope(t, w)
	assert.Equal(t, false, env.Data["active"])

	session.Set("tok123", "0xabc", "admin")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	env = decodeEnvelope(t, w)
	assert.Equal(t, true, env.Data["active"])
	assert.Equal(t, "0xabc", env.Data["wallet_address"])
}
