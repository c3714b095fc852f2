// internal/cosmos/client.go - Cosmos SDK REST API client
package cosmos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	latestBlockPath  = "/cosmos/base/tendermint/v1beta1/blocks/latest"
	signingInfosPath = "/cosmos/slashing/v1beta1/signing_infos/"
)

// ErrMissingField is returned when a response decodes but lacks the value we need.
var ErrMissingField = errors.New("missing field in response")

type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient returns a client whose every request is bounded by timeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger,
	}
}

type LatestBlockResponse struct {
	Block struct {
		Header struct {
			ChainID string          `json:"chain_id"`
			Height  json.RawMessage `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

type SigningInfoResponse struct {
	ValSigningInfo struct {
		Address             string          `json:"address"`
		StartHeight         json.RawMessage `json:"start_height"`
		JailedUntil         string          `json:"jailed_until"`
		Tombstoned          bool            `json:"tombstoned"`
		MissedBlocksCounter json.RawMessage `json:"missed_blocks_counter"`
	} `json:"val_signing_info"`
}

func (c *Client) makeRequest(ctx context.Context, url string, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Making HTTP request", "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d: %s - %s", resp.StatusCode, resp.Status, string(body))
	}

	c.logger.Debug("HTTP response received", "status", resp.StatusCode, "body_length", len(body))

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return nil
}

// GetLatestHeight returns the latest block height reported by the node at baseURL.
func (c *Client) GetLatestHeight(ctx context.Context, baseURL string) (int64, error) {
	var response LatestBlockResponse
	if err := c.makeRequest(ctx, baseURL+latestBlockPath, &response); err != nil {
		return 0, err
	}

	height, err := parseInt(response.Block.Header.Height)
	if err != nil {
		return 0, fmt.Errorf("block.header.height: %w", err)
	}
	if height <= 0 {
		return 0, fmt.Errorf("block.header.height: non-positive height %d", height)
	}

	return height, nil
}

// GetMissedBlocks returns the slashing module's missed-block counter for validator.
func (c *Client) GetMissedBlocks(ctx context.Context, baseURL, validator string) (int64, error) {
	var response SigningInfoResponse
	if err := c.makeRequest(ctx, baseURL+signingInfosPath+validator, &response); err != nil {
		return 0, err
	}

	missed, err := parseInt(response.ValSigningInfo.MissedBlocksCounter)
	if err != nil {
		return 0, fmt.Errorf("val_signing_info.missed_blocks_counter: %w", err)
	}
	if missed < 0 {
		return 0, fmt.Errorf("val_signing_info.missed_blocks_counter: negative counter %d", missed)
	}

	return missed, nil
}

// parseInt accepts both the string encoding the SDK uses for 64-bit integers and bare numbers.
func parseInt(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrMissingField
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
	} else {
		s = string(raw)
	}

	return strconv.ParseInt(s, 10, 64)
}
