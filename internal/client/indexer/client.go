// Package indexer queries the poll subgraph over GraphQL.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pollkeeper/internal/poll"
	"pollkeeper/internal/token"
)

const DefaultPageSize = 100

type Client struct {
	endpoints  map[string]string
	httpClient *http.Client
	tokens     *token.Registry
	pageSize   int
	logger     *zap.Logger
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("indexer error (%d): %s", e.Status, e.Body)
}

// NewClient takes one GraphQL endpoint per chain scope.
func NewClient(httpClient *http.Client, endpoints map[string]string, tokens *token.Registry, pageSize int, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	normalized := make(map[string]string, len(endpoints))
	for chain, url := range endpoints {
		normalized[strings.ToLower(strings.TrimSpace(chain))] = strings.TrimRight(strings.TrimSpace(url), "/")
	}
	return &Client{
		endpoints:  normalized,
		httpClient: httpClient,
		tokens:     tokens,
		pageSize:   pageSize,
		logger:     logger,
	}
}

func (c *Client) doRequest(ctx context.Context, chain string, payload graphQLRequest) ([]byte, error) {
	endpoint := c.endpoints[strings.ToLower(strings.TrimSpace(chain))]
	if endpoint == "" {
		return nil, fmt.Errorf("no indexer endpoint for chain %q", chain)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(out)}
	}
	return out, nil
}

// PollsByCreator pages through the creator's polls, newest first, until a
// short page or limit is reached. Rows that fail to decode are skipped.
func (c *Client) PollsByCreator(ctx context.Context, chain, creator string, limit int) ([]poll.Record, error) {
	creator = poll.NormalizeCreator(creator)
	if creator == "" {
		return nil, fmt.Errorf("creator is required")
	}
	out := make([]poll.Record, 0)
	for skip := 0; limit <= 0 || skip < limit; skip += c.pageSize {
		first := c.pageSize
		if limit > 0 && limit-skip < first {
			first = limit - skip
		}
		body, err := c.doRequest(ctx, chain, graphQLRequest{
			Query: pollsByCreatorQuery,
			Variables: map[string]any{
				"creator": creator,
				"first":   first,
				"skip":    skip,
			},
		})
		if err != nil {
			return nil, err
		}
		var resp pollsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if len(resp.Errors) > 0 {
			return nil, fmt.Errorf("graphql: %s", resp.Errors[0].Message)
		}
		for _, row := range resp.Data.Polls {
			rec, err := row.toRecord(chain, c.tokens)
			if err != nil {
				if c.logger != nil {
					c.logger.Warn("skipping undecodable indexer row", zap.String("poll_id", row.PollID), zap.Error(err))
				}
				continue
			}
			out = append(out, rec)
		}
		if len(resp.Data.Polls) < first {
			break
		}
	}
	return out, nil
}
