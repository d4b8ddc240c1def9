package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/repforge/internal/adapters/mq/worker"
	"github.com/okian/repforge/internal/domain/types"
)

// Submission outcomes.
const (
	resultAccepted  = "accepted"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
)

// Client talks to the service HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for base with a per-request timeout.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{base: base, http: &http.Client{Timeout: timeout}}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// PostEvent submits one event and reports whether it was new.
func (c *Client) PostEvent(ctx context.Context, req *types.EventRequest) (string, error) {
	var ack types.EventAck
	if err := c.do(ctx, http.MethodPost, "/events", req, &ack); err != nil {
		return resultFailed, err
	}
	if ack.Duplicate {
		return resultDuplicate, nil
	}
	return resultAccepted, nil
}

// Dispatch triggers one cycle across all partitions.
func (c *Client) Dispatch(ctx context.Context) (worker.Summary, error) {
	var sum worker.Summary
	err := c.do(ctx, http.MethodPost, "/dispatch", nil, &sum)
	return sum, err
}

// Balance reads an owner's balance.
func (c *Client) Balance(ctx context.Context, owner string) (types.Balance, error) {
	var b types.Balance
	err := c.do(ctx, http.MethodGet, "/owners/"+url.PathEscape(owner)+"/balance", nil, &b)
	return b, err
}

// Ledger reads up to limit of an owner's entries.
func (c *Client) Ledger(ctx context.Context, owner string, limit int) (types.LedgerPage, error) {
	var p types.LedgerPage
	path := "/owners/" + url.PathEscape(owner) + "/ledger?limit=" + strconv.Itoa(limit)
	err := c.do(ctx, http.MethodGet, path, nil, &p)
	return p, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
