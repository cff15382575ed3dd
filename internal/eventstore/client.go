package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgallion1/alexandria/internal/address"
	"github.com/dgallion1/alexandria/internal/event"
)

// Client stores events in a remote key-value service over HTTP. Events live
// at /kv/events/{pubkey}/{address}, so an author's events are a prefix scan.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	Stats      *Stats
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRateLimit caps requests per second; rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Inf, 0),
		Stats:   NewStats(time.Hour),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type nodeRequest struct {
	Value  *event.Event `json:"value"`
	Source string       `json:"source,omitempty"`
}

type nodeResponse struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

func eventKey(addr address.Address) (string, error) {
	c, err := address.Parse(string(addr))
	if err != nil {
		return "", err
	}
	return "events/" + url.PathEscape(c.Pubkey) + "/" + url.PathEscape(string(addr)), nil
}

// Put stores ev at its address.
func (c *Client) Put(ctx context.Context, ev *event.Event) error {
	key, err := eventKey(ev.Address())
	if err != nil {
		return err
	}
	body, err := json.Marshal(nodeRequest{Value: ev, Source: "alexandria"})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.do(ctx, "put", func() error {
		resp, err := c.send(ctx, http.MethodPut, "/kv/"+key, body)
		if err != nil {
			return fmt.Errorf("put event: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return statusError("put event "+key, resp)
		}
		return nil
	})
}

// Get fetches the event at addr, or ErrNotFound.
func (c *Client) Get(ctx context.Context, addr address.Address) (*event.Event, error) {
	key, err := eventKey(addr)
	if err != nil {
		return nil, err
	}
	var ev *event.Event
	err = c.do(ctx, "get", func() error {
		resp, err := c.send(ctx, http.MethodGet, "/kv/"+key, nil)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", addr, ErrNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			return statusError("get event "+key, resp)
		}
		var node nodeResponse
		if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
			return fmt.Errorf("decode node: %w", err)
		}
		ev = new(event.Event)
		if err := json.Unmarshal(node.Value, ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Delete removes the event at addr.
func (c *Client) Delete(ctx context.Context, addr address.Address) error {
	key, err := eventKey(addr)
	if err != nil {
		return err
	}
	return c.do(ctx, "delete", func() error {
		resp, err := c.send(ctx, http.MethodDelete, "/kv/"+key, nil)
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", addr, ErrNotFound)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return statusError("delete event "+key, resp)
		}
		return nil
	})
}

// List does a prefix scan over an author's events.
func (c *Client) List(ctx context.Context, pubkey string) ([]*event.Event, error) {
	path := "/kv/events/" + url.PathEscape(pubkey) + "/*?limit=10000"
	var out []*event.Event
	err := c.do(ctx, "list", func() error {
		resp, err := c.send(ctx, http.MethodGet, path, nil)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return statusError("list events "+pubkey, resp)
		}
		var result struct {
			Nodes []nodeResponse `json:"nodes"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode nodes: %w", err)
		}
		out = out[:0]
		for _, n := range result.Nodes {
			ev := new(event.Event)
			if err := json.Unmarshal(n.Value, ev); err != nil {
				return fmt.Errorf("decode event %s: %w", n.Key, err)
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// do runs fn under the rate limiter, retrying transient failures, and
// records one stats sample for the whole call.
func (c *Client) do(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	var err error
	for attempt := range MaxRetries {
		if err = c.limiter.Wait(ctx); err != nil {
			break
		}
		err = fn()
		if err == nil || !IsRetryable(err) || attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			err = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
	}
	c.Stats.Record(op, time.Since(start), err)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.httpClient.Do(httpReq)
}

func statusError(what string, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return fmt.Errorf("%s: status %d: %s", what, resp.StatusCode, string(respBody))
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
