/*
This file contains the upstream GraphQL API client. The API is a single
POST endpoint serving both query generations; requests are a JSON body of
{query, variables} and responses are the standard GraphQL envelope.

"Not found" and "no historical data" errors from upstream are normal
conditions (new vaults, empty positions) and map to ErrNotFound so callers
can degrade to an empty-but-valid result instead of failing.
*/

package datafetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"

	"github.com/openvaults/vaultbridge/internal/config"
	"github.com/openvaults/vaultbridge/internal/logger"
)

var fetchLogger = logger.GetForComponent("datafetcher")

var (
	ErrNotFound      = errors.New("vault or data not found upstream")
	ErrUpstreamQuery = errors.New("upstream query failed")
	ErrNetwork       = errors.New("upstream request failed")
)

// Client is the upstream GraphQL API client.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client against the configured upstream endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: config.FetchTimeout,
		},
	}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Query executes a GraphQL query and unmarshals the data envelope into out.
// Transport failures are retried with a bounded attempt count; GraphQL
// errors are never retried.
func (c *Client) Query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	var envelope graphQLEnvelope

	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to build request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return errors.Join(ErrNetwork, err)
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
			if err != nil {
				return errors.Join(ErrNetwork, err)
			}

			if resp.StatusCode >= 500 {
				return fmt.Errorf("%w: upstream returned status %d", ErrNetwork, resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("%w: upstream returned status %d", ErrUpstreamQuery, resp.StatusCode))
			}

			if err := json.Unmarshal(raw, &envelope); err != nil {
				return errors.Join(ErrNetwork, fmt.Errorf("non-JSON upstream response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(config.FetchMaxRetries),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		fetchLogger.Error().Err(err).Msg("Upstream request failed after retries")
		return err
	}

	if len(envelope.Errors) > 0 {
		msg := envelope.Errors[0].Message
		if isNotFoundMessage(msg) {
			fetchLogger.Debug().Str("message", msg).Msg("Upstream reported no data")
			return ErrNotFound
		}
		fetchLogger.Error().Str("message", msg).Msg("Upstream query error")
		return fmt.Errorf("%w: %s", ErrUpstreamQuery, msg)
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return ErrNotFound
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode upstream data: %w", err)
	}
	return nil
}

// isNotFoundMessage classifies upstream error messages that represent an
// empty result rather than a genuine failure.
func isNotFoundMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "no historical data") ||
		strings.Contains(lower, "no data")
}
