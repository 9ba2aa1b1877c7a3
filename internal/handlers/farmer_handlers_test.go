package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ownafarm/ownafarm-gateway/internal/client/backend"
	"github.com/ownafarm/ownafarm-gateway/internal/contract"
	"github.com/ownafarm/ownafarm-gateway/internal/registration"
	"github.com/ownafarm/ownafarm-gateway/internal/upload"
)

type fakeUploader struct {
	called bool
	docs   []backend.UploadedDocument
	err    error
}

func (u *fakeUploader) UploadAll(context.Context, map[string]upload.File) ([]backend.UploadedDocument, error) {
	u.called = true
	return u.docs, u.err
}

type fakeRegistrar struct {
	resp *backend.RegisterResponse
	err  error
}

func (r *fakeRegistrar) RegisterFarmer(context.Context, backend.RegisterRequest) (*backend.RegisterResponse, error) {
	return r.resp, r.err
}

type fakeMinter struct {
	receipt *types.Receipt
}

func (m *fakeMinter) SubmitInvoice(context.Context, contract.SubmitParams) (*types.Transaction, error) {
	return types.NewTx(&types.LegacyTx{Nonce: 1}), nil
}

func (m *fakeMinter) WaitMined(context.Context, *types.Transaction) (*types.Receipt, error) {
	return m.receipt, nil
}

func newFarmerRouter(uploader *fakeUploader, registrar *fakeRegistrar, minter *fakeMinter) *gin.Engine {
	var m registration.InvoiceMinter
	if minter != nil {
		m = minter
	}
	svc := registration.NewService(uploader, registrar, m, nil)
	h := NewFarmerHandler(svc, nil)

	router := gin.New()
	router.POST("/farmers/registrations", h.Register)
	router.POST("/farmers/invoices", h.SubmitInvoice)
	return router
}

func registeredResponse(farmerID string) *backend.RegisterResponse {
	resp := &backend.RegisterResponse{Status: "success"}
	resp.Data.FarmerID = farmerID
	return resp
}

func registrationForm(t *testing.T, docTypes ...string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	personal, err := json.Marshal(backend.PersonalInfo{FullName: "Siti Rahayu", Email: "siti@example.com"})
	require.NoError(t, err)
	require.NoError(t, w.WriteField("personal_info", string(personal)))

	business, err := json.Marshal(backend.BusinessInfo{BusinessName: "Tani Makmur"})
	require.NoError(t, err)
	require.NoError(t, w.WriteField("business_info", string(business)))

	for _, docType := range docTypes {
		part, err := w.CreateFormFile(docType, docType+".jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func postForm(router *gin.Engine, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/farmers/registrations", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterHappyPath(t *testing.T) {
	uploader := &fakeUploader{docs: []backend.UploadedDocument{
		{DocumentType: upload.TypeKTPPhoto, FileKey: "k1"},
		{DocumentType: upload.TypeSelfieWithKTP, FileKey: "k2"},
	}}
	router := newFarmerRouter(uploader, &fakeRegistrar{resp: registeredResponse("f1")}, nil)

	body, contentType := registrationForm(t, upload.TypeKTPPhoto, upload.TypeSelfieWithKTP)
	w := postForm(router, body, contentType)

	require.Equal(t, http.StatusCreated, w.Code)
	var env bannerEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "f1", env.Data["farmer_id"])
	assert.Equal(t, successClearAfterMs, env.Banner.ClearAfterMs)
}

func TestRegisterMissingRequiredDocument(t *testing.T) {
	uploader := &fakeUploader{}
	router := newFarmerRouter(uploader, &fakeRegistrar{resp: registeredResponse("f1")}, nil)

	// Selfie is absent, so nothing may touch the network.
	body, contentType := registrationForm(t, upload.TypeKTPPhoto)
	w := postForm(router, body, contentType)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, uploader.called)
}

func TestRegisterMissingJSONField(t *testing.T) {
	router := newFarmerRouter(&fakeUploader{}, &fakeRegistrar{}, nil)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("personal_info", "{}"))
	require.NoError(t, w.Close())

	resp := postForm(router, &body, w.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "business_info")
}

func TestRegisterDuplicateConflict(t *testing.T) {
	uploader := &fakeUploader{docs: []backend.UploadedDocument{
		{DocumentType: upload.TypeKTPPhoto},
		{DocumentType: upload.TypeSelfieWithKTP},
	}}
	registrar := &fakeRegistrar{err: &backend.APIError{StatusCode: 409, Message: "email already registered"}}
	router := newFarmerRouter(uploader, registrar, nil)

	body, contentType := registrationForm(t, upload.TypeKTPPhoto, upload.TypeSelfieWithKTP)
	w := postForm(router, body, contentType)

	require.Equal(t, http.StatusConflict, w.Code)
	var env bannerEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Contains(t, env.Error, "already exists")
}

func mintedReceipt(t *testing.T, tokenID int64) *types.Receipt {
	t.Helper()
	data, err := contract.PackInvoiceSubmittedData([32]byte{}, big.NewInt(5_000_000))
	require.NoError(t, err)
	farmer := common.HexToAddress("0x5555555555555555555555555555555555555555")
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{{
			Topics: []common.Hash{
				contract.InvoiceSubmittedID(),
				common.BigToHash(big.NewInt(tokenID)),
				common.BytesToHash(farmer.Bytes()),
			},
			Data: data,
		}},
	}
}

func TestSubmitInvoiceHandler(t *testing.T) {
	router := newFarmerRouter(&fakeUploader{}, &fakeRegistrar{}, &fakeMinter{receipt: mintedReceipt(t, 42)})

	w := doJSON(t, router, http.MethodPost, "/farmers/invoices", gin.H{
		"offtaker_email": "buyer@example.com",
		"target_fund":    "5000000",
		"yield_bps":      800,
		"duration_days":  90,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var env bannerEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, float64(42), env.Data["token_id"])
	assert.NotEmpty(t, env.Data["tx_hash"])
}

func TestSubmitInvoiceRejectsBadTargetFund(t *testing.T) {
	router := newFarmerRouter(&fakeUploader{}, &fakeRegistrar{}, &fakeMinter{})

	for _, fund := range []string{"abc", "-5", "0"} {
		w := doJSON(t, router, http.MethodPost, "/farmers/invoices", gin.H{
			"offtaker_email": "buyer@example.com",
			"target_fund":    fund,
			"yield_bps":      800,
			"duration_days":  90,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, "target_fund=%s", fund)
	}
}
