/*

Read handlers favor a renderable empty state over a hard failure: invalid
input returns 400 with an empty-but-well-typed body, and an upstream
failure returns 200 with empty data plus an error string. The UI never
has to special-case a malformed response shape.

*/

package web

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/openvaults/vaultbridge/internal/adapter"
	"github.com/openvaults/vaultbridge/internal/config"
	"github.com/openvaults/vaultbridge/internal/history"
	"github.com/openvaults/vaultbridge/internal/orchestrator"
	"github.com/openvaults/vaultbridge/internal/state"
	"github.com/openvaults/vaultbridge/internal/types"
)

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// vaultResponse is the typed body of the complete-vault endpoint.
type vaultResponse struct {
	Vault *types.VaultSnapshot `json:"vault"`
	Error string               `json:"error,omitempty"`
}

// historyResponse is the typed body of the history endpoint.
type historyResponse struct {
	History []types.HistoryPoint `json:"history"`
	Error   string               `json:"error,omitempty"`
}

// activityResponse is the typed body of the activity endpoint.
type activityResponse struct {
	Activity []types.ActivityEntry `json:"activity"`
	Error    string                `json:"error,omitempty"`
}

// readParams are the validated inputs shared by all read endpoints.
type readParams struct {
	Address string
	ChainID int64
	Version types.SchemaVersion
}

// parseReadParams validates the address path variable and the chainId and
// schemaVersion query parameters. A validation failure returns an error
// message for the typed 400 body; no network call happens after one.
func parseReadParams(r *http.Request) (readParams, string) {
	vars := mux.Vars(r)
	address := vars["address"]
	if !addressPattern.MatchString(address) {
		return readParams{}, "Invalid vault address"
	}

	chainIDStr := r.URL.Query().Get("chainId")
	chainID, err := strconv.ParseInt(chainIDStr, 10, 64)
	if err != nil || chainID <= 0 || chainID > math.MaxInt32 {
		return readParams{}, "Invalid chainId"
	}

	version := types.SchemaV1
	switch r.URL.Query().Get("schemaVersion") {
	case "", "v1":
	case "v2":
		version = types.SchemaV2
	default:
		return readParams{}, "Invalid schemaVersion"
	}

	return readParams{Address: address, ChainID: chainID, Version: version}, ""
}

// handleVaultComplete returns the normalized snapshot for one vault.
func (ws *WebServer) handleVaultComplete(w http.ResponseWriter, r *http.Request) {
	params, problem := parseReadParams(r)
	if problem != "" {
		ws.writeJSONResponse(w, http.StatusBadRequest, vaultResponse{Error: problem})
		return
	}

	payload, err := ws.fetcher.FetchVault(r.Context(), params.Address, params.ChainID, params.Version)
	if err != nil {
		webLogger.Error().Err(err).Str("vault", params.Address).Msg("Failed to fetch vault")
		ws.writeJSONResponse(w, http.StatusOK, ws.staleVaultResponse(params, "Failed to load vault data"))
		return
	}

	snapshot, err := adapter.Normalize(payload, params.Address, params.ChainID)
	if err != nil {
		webLogger.Error().Err(err).Str("vault", params.Address).Msg("Failed to normalize vault payload")
		ws.writeJSONResponse(w, http.StatusOK, ws.staleVaultResponse(params, "Failed to load vault data"))
		return
	}

	// Cache best-effort; a write failure never blocks the read path.
	if state.DB != nil {
		if _, err := state.SaveVaultSnapshot(*snapshot); err != nil {
			webLogger.Warn().Err(err).Str("vault", params.Address).Msg("Failed to cache vault snapshot")
		}
	}

	ws.writeJSONResponse(w, http.StatusOK, vaultResponse{Vault: snapshot})
}

// staleVaultResponse serves the last cached snapshot when the upstream is
// unreachable, falling back to a nil vault with just the error string.
func (ws *WebServer) staleVaultResponse(params readParams, message string) vaultResponse {
	if state.DB == nil {
		return vaultResponse{Error: message}
	}
	cached, err := state.LatestVaultSnapshot(params.Address, params.ChainID)
	if err != nil || cached == nil {
		return vaultResponse{Error: message}
	}
	webLogger.Warn().Str("vault", params.Address).Time("fetchedAt", cached.FetchedAt).Msg("Serving stale cached snapshot")
	return vaultResponse{Vault: cached, Error: message + " (showing cached data)"}
}

// handleVaultHistory returns the aggregated historical series for a vault.
func (ws *WebServer) handleVaultHistory(w http.ResponseWriter, r *http.Request) {
	params, problem := parseReadParams(r)
	if problem != "" {
		ws.writeJSONResponse(w, http.StatusBadRequest, historyResponse{History: []types.HistoryPoint{}, Error: problem})
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "all"
	}
	if _, known := config.HistoryPeriods[period]; !known && period != "all" {
		ws.writeJSONResponse(w, http.StatusBadRequest, historyResponse{History: []types.HistoryPoint{}, Error: "Invalid period"})
		return
	}

	// The current snapshot supplies the asset decimals and spot price the
	// per-point reconciliation needs.
	payload, err := ws.fetcher.FetchVault(r.Context(), params.Address, params.ChainID, params.Version)
	if err != nil {
		webLogger.Error().Err(err).Str("vault", params.Address).Msg("Failed to fetch vault for history")
		ws.writeJSONResponse(w, http.StatusOK, historyResponse{History: []types.HistoryPoint{}, Error: "Failed to load history"})
		return
	}
	snapshot, err := adapter.Normalize(payload, params.Address, params.ChainID)
	if err != nil {
		ws.writeJSONResponse(w, http.StatusOK, historyResponse{History: []types.HistoryPoint{}, Error: "Failed to load history"})
		return
	}

	series, err := ws.fetcher.FetchHistory(r.Context(), params.Address, params.ChainID, params.Version)
	if err != nil {
		webLogger.Error().Err(err).Str("vault", params.Address).Msg("Failed to fetch vault history")
		ws.writeJSONResponse(w, http.StatusOK, historyResponse{History: []types.HistoryPoint{}, Error: "Failed to load history"})
		return
	}

	points := history.Aggregate(history.Inputs{
		Series:        series,
		Version:       params.Version,
		AssetDecimals: snapshot.Asset.Decimals,
		SpotPriceUSD:  snapshot.Asset.PriceUSD,
	})
	points = history.FilterPeriod(points, period, time.Now())

	ws.writeJSONResponse(w, http.StatusOK, historyResponse{History: points})
}

// handleVaultActivity returns the recent user transactions for a vault.
func (ws *WebServer) handleVaultActivity(w http.ResponseWriter, r *http.Request) {
	params, problem := parseReadParams(r)
	if problem != "" {
		ws.writeJSONResponse(w, http.StatusBadRequest, activityResponse{Activity: []types.ActivityEntry{}, Error: problem})
		return
	}

	userAddress := r.URL.Query().Get("userAddress")
	if userAddress != "" && !addressPattern.MatchString(userAddress) {
		ws.writeJSONResponse(w, http.StatusBadRequest, activityResponse{Activity: []types.ActivityEntry{}, Error: "Invalid userAddress"})
		return
	}

	entries, err := ws.fetcher.FetchActivity(r.Context(), params.Address, params.ChainID, userAddress, params.Version)
	if err != nil {
		webLogger.Error().Err(err).Str("vault", params.Address).Msg("Failed to fetch vault activity")
		ws.writeJSONResponse(w, http.StatusOK, activityResponse{Activity: []types.ActivityEntry{}, Error: "Failed to load activity"})
		return
	}
	if entries == nil {
		entries = []types.ActivityEntry{}
	}

	ws.writeJSONResponse(w, http.StatusOK, activityResponse{Activity: entries})
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbHealthy := state.DB != nil && state.TestDBConnection() == nil

	status := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		status = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"component": map[string]interface{}{
			"name":      "vaultbridge",
			"read_only": ws.orch == nil,
		},
		"database_healthy": dbHealthy,
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// flowStateResponse is the typed body of all transaction endpoints.
type flowStateResponse struct {
	State types.TransactionState `json:"state"`
	Error string                 `json:"error,omitempty"`
}

// requireOrchestrator gates the transaction endpoints in read-only mode.
func (ws *WebServer) requireOrchestrator(w http.ResponseWriter) bool {
	if ws.orch != nil {
		return true
	}
	ws.writeJSONResponse(w, http.StatusServiceUnavailable, flowStateResponse{
		State: types.TransactionState{Status: types.StatusIdle},
		Error: "Transactions are disabled: no signing key configured",
	})
	return false
}

// handleBeginFlow opens a transaction flow in preview.
func (ws *WebServer) handleBeginFlow(w http.ResponseWriter, r *http.Request) {
	if !ws.requireOrchestrator(w) {
		return
	}

	var req orchestrator.FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeJSONResponse(w, http.StatusBadRequest, flowStateResponse{State: ws.orch.State(), Error: "Invalid request body"})
		return
	}

	if err := ws.orch.Begin(req); err != nil {
		statusCode := http.StatusBadRequest
		if errors.Is(err, orchestrator.ErrFlowActive) {
			statusCode = http.StatusConflict
		}
		ws.writeJSONResponse(w, statusCode, flowStateResponse{State: ws.orch.State(), Error: err.Error()})
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, flowStateResponse{State: ws.orch.State()})
}

// handleConfirmFlow executes the previewed flow asynchronously; clients
// poll /transactions/state for progress.
func (ws *WebServer) handleConfirmFlow(w http.ResponseWriter, r *http.Request) {
	if !ws.requireOrchestrator(w) {
		return
	}

	if ws.orch.State().Status != types.StatusPreview {
		ws.writeJSONResponse(w, http.StatusConflict, flowStateResponse{State: ws.orch.State(), Error: "No flow in preview"})
		return
	}

	go func() {
		if err := ws.orch.Confirm(context.Background()); err != nil {
			webLogger.Error().Err(err).Msg("Transaction flow failed")
		}
	}()

	ws.writeJSONResponse(w, http.StatusAccepted, flowStateResponse{State: ws.orch.State()})
}

// handleResetFlow dismisses or abandons the current flow.
func (ws *WebServer) handleResetFlow(w http.ResponseWriter, r *http.Request) {
	if !ws.requireOrchestrator(w) {
		return
	}

	ws.orch.Reset()
	ws.writeJSONResponse(w, http.StatusOK, flowStateResponse{State: ws.orch.State()})
}

// handleFlowState returns the current transaction state.
func (ws *WebServer) handleFlowState(w http.ResponseWriter, r *http.Request) {
	if !ws.requireOrchestrator(w) {
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, flowStateResponse{State: ws.orch.State()})
}
