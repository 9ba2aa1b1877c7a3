package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ownhttp "github.com/ownafarm/ownafarm-gateway/internal/client/http"
)

type staticTokens struct {
	token string
}

func (s staticTokens) Token() (string, bool) {
	return s.token, s.token != ""
}

func newTestClient(t *testing.T, handler http.Handler, token string) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL,
		WithTokenSource(staticTokens{token: token}),
		WithHTTPClient(ownhttp.NewClient(ownhttp.WithBaseURL(srv.URL), ownhttp.WithoutRetries())))
	return client, srv
}

func TestGetAdminNonce(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/auth/nonce", r.URL.Path)
		assert.Equal(t, "0xabc", r.URL.Query().Get("wallet_address"))
		json.NewEncoder(w).Encode(NonceResponse{Nonce: "n1", SignMessage: "Login nonce n1"})
	}), "")

	nonce, err := client.GetAdminNonce(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "n1", nonce.Nonce)
	assert.Equal(t, "Login nonce n1", nonce.SignMessage)
}

func TestAdminLoginRejectsMissingToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(LoginResponse{})
	}), "")

	_, err := client.AdminLogin(context.Background(), LoginRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 502, apiErr.StatusCode)
}

func TestAdminLoginMapsBackendError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"wallet is not an admin"}`))
	}), "")

	_, err := client.AdminLogin(context.Background(), LoginRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsUnauthorized())
	assert.Equal(t, "wallet is not an admin", apiErr.Message)
}

func TestListFarmersSendsBearerAndStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		w.Write([]byte(`{"status":"success","data":{"farmers":[{"id":"f1","full_name":"Siti","status":"pending","token_id":42}]}}`))
	}), "tok123")

	farmers, err := client.ListFarmers(context.Background(), "pending")
	require.NoError(t, err)
	require.Len(t, farmers, 1)
	assert.Equal(t, "f1", farmers[0].ID)
	require.NotNil(t, farmers[0].TokenID)
	assert.Equal(t, uint64(42), *farmers[0].TokenID)
}

func TestListFarmersOmitsEmptyStatusFilter(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["status"]
		assert.False(t, present)
		w.Write([]byte(`{"status":"success","data":{"farmers":[]}}`))
	}), "tok123")

	_, err := client.ListFarmers(context.Background(), "")
	require.NoError(t, err)
}

func TestAdminEndpointsRequireSession(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should reach the backend without a session")
	}), "")

	_, err := client.ListFarmers(context.Background(), "")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	require.Error(t, client.ApproveFarmer(context.Background(), "f1"))
	require.Error(t, client.RejectFarmer(context.Background(), "f1", "bad docs"))
}

func TestApproveFarmerPatchesCorrectPath(t *testing.T) {
	var gotMethod, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":"success"}`))
	}), "tok123")

	require.NoError(t, client.ApproveFarmer(context.Background(), "f1"))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/admin/farmers/f1/approve", gotPath)
}

func TestRejectFarmerSendsReason(t *testing.T) {
	var body rejectRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/farmers/f1/reject", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"status":"success"}`))
	}), "tok123")

	require.NoError(t, client.RejectFarmer(context.Background(), "f1", "documents unreadable"))
	assert.Equal(t, "documents unreadable", body.Reason)
}

func TestPresignDocuments(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/farmers/documents/presign", r.URL.Path)
		var req presignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"ktp_photo", "selfie_with_ktp"}, req.DocumentTypes)
		w.Write([]byte(`{"status":"success","data":{"urls":[
			{"document_type":"ktp_photo","upload_url":"https://s3/k1","file_key":"k1"},
			{"document_type":"selfie_with_ktp","upload_url":"https://s3/k2","file_key":"k2"}
		]}}`))
	}), "")

	urls, err := client.PresignDocuments(context.Background(), []string{"ktp_photo", "selfie_with_ktp"})
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, "https://s3/k1", urls[0].UploadURL)
}

func TestRegisterFarmerDuplicate(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"email already registered"}`))
	}), "")

	_, err := client.RegisterFarmer(context.Background(), RegisterRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsDuplicate())
	assert.Equal(t, "email already registered", apiErr.Message)
}

func TestHealth(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		w.Write([]byte(`{"status":"ok"}`))
	}), "")

	require.NoError(t, client.Health(context.Background()))
}
