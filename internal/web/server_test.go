package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvaults/vaultbridge/internal/datafetcher"
)

const (
	goodVault  = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	goodWallet = "0xBbbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
)

// upstreamStub serves canned GraphQL responses keyed by query substring.
func upstreamStub(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		for needle, response := range responses {
			if strings.Contains(string(body), needle) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(response))
				return
			}
		}
		w.Write([]byte(`{"errors":[{"message":"not found"}]}`))
	}))
}

func newReadOnlyServer(endpoint string) *WebServer {
	return NewWebServer("0", datafetcher.NewClient(endpoint), nil)
}

func TestReadEndpointValidation(t *testing.T) {
	// Validation rejects before any network call, so the endpoint does not
	// need to be reachable.
	ws := newReadOnlyServer("http://127.0.0.1:1")

	testCases := []struct {
		name string
		url  string
	}{
		{"malformed address", "/vaults/0x1234/complete?chainId=1"},
		{"address with non-hex chars", "/vaults/0xzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz/complete?chainId=1"},
		{"missing chainId", "/vaults/" + goodVault + "/complete"},
		{"negative chainId", "/vaults/" + goodVault + "/complete?chainId=-1"},
		{"chainId beyond int32", "/vaults/" + goodVault + "/complete?chainId=3000000000"},
		{"unknown schemaVersion", "/vaults/" + goodVault + "/complete?chainId=1&schemaVersion=v3"},
		{"unknown period", "/vaults/" + goodVault + "/history?chainId=1&period=2d"},
		{"malformed userAddress", "/vaults/" + goodVault + "/activity?chainId=1&userAddress=nope"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ws.Router().ServeHTTP(rec, httptest.NewRequest("GET", tc.url, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			// The 400 body stays well-typed: an error string plus the
			// endpoint's zero data shape.
			var body map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body, "error")
		})
	}
}

func TestVaultCompleteReturnsNormalizedSnapshot(t *testing.T) {
	upstream := upstreamStub(t, map[string]string{
		"vaultByAddress": `{"data":{"vaultByAddress":{
			"address":"` + goodVault + `",
			"name":"Prime USDC",
			"asset":{"symbol":"USDC","decimals":6,"priceUsd":"1"},
			"state":{
				"totalAssets":"5000000000",
				"totalAssetsUsd":"5000",
				"totalSupply":"4900000000000000000000",
				"sharePrice":"1.02",
				"sharePriceUsd":"1.02",
				"apy":"0.045","netApy":"0.04","netApyWithoutRewards":"0.035","rewardsApr":"0.005",
				"allocation":[]
			}
		}}}`,
	})
	defer upstream.Close()

	ws := newReadOnlyServer(upstream.URL)
	rec := httptest.NewRecorder()
	ws.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/vaults/"+goodVault+"/complete?chainId=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body vaultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Error)
	require.NotNil(t, body.Vault)
	assert.Equal(t, "Prime USDC", body.Vault.Name)
	assert.Equal(t, "USDC", body.Vault.Asset.Symbol)
	assert.Equal(t, "5000000000", body.Vault.TotalAssetsRaw)
	assert.Equal(t, "1.02", body.Vault.SharePrice.String())
}

func TestHistoryUpstreamFailureDegradesToEmptyTypedBody(t *testing.T) {
	// A non-not-found GraphQL error is a genuine upstream failure.
	upstream := upstreamStub(t, map[string]string{
		"VaultByAddress": `{"errors":[{"message":"internal upstream failure"}]}`,
	})
	defer upstream.Close()

	ws := newReadOnlyServer(upstream.URL)
	rec := httptest.NewRecorder()
	ws.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/vaults/"+goodVault+"/history?chainId=1&period=30d", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	assert.NotNil(t, body.History)
	assert.Empty(t, body.History)
}

func TestActivityUnknownVaultReturnsEmpty(t *testing.T) {
	// Upstream "not found" is a normal empty state for read endpoints.
	upstream := upstreamStub(t, map[string]string{})
	defer upstream.Close()

	ws := newReadOnlyServer(upstream.URL)
	rec := httptest.NewRecorder()
	url := "/vaults/" + goodVault + "/activity?chainId=1&userAddress=" + goodWallet
	ws.Router().ServeHTTP(rec, httptest.NewRequest("GET", url, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body activityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body.Activity)
	assert.Empty(t, body.Activity)
}

func TestTransactionEndpointsDisabledInReadOnlyMode(t *testing.T) {
	ws := newReadOnlyServer("http://127.0.0.1:1")

	for _, endpoint := range []struct {
		method string
		path   string
	}{
		{"POST", "/transactions"},
		{"POST", "/transactions/confirm"},
		{"POST", "/transactions/reset"},
		{"GET", "/transactions/state"},
	} {
		rec := httptest.NewRecorder()
		ws.Router().ServeHTTP(rec, httptest.NewRequest(endpoint.method, endpoint.path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, endpoint.path)

		var body flowStateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.Error)
	}
}

func TestHealthDegradedWithoutDatabase(t *testing.T) {
	ws := newReadOnlyServer("http://127.0.0.1:1")
	rec := httptest.NewRecorder()
	ws.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "DEGRADED", body["status"])
}
